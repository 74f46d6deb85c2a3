// Package password реализует генерацию соли, хеширование и проверку паролей.
//
// Хэш строится как bcrypt(salt + password): соль хранится рядом с хэшем в таблице users.
package password

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// SaltLength — длина соли по умолчанию.
const SaltLength = 32

// MaxPasswordLength — bcrypt учитывает не больше 72 байт, часть из них занимает соль.
const MaxPasswordLength = 72 - SaltLength

const saltChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateSalt возвращает строку длины n, символы равномерно выбраны из [a-zA-Z0-9].
func GenerateSalt(n int) (string, error) {
	const op = "password.GenerateSalt"
	limit := big.NewInt(int64(len(saltChars)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		buf[i] = saltChars[idx.Int64()]
	}
	return string(buf), nil
}

// GetHash принимает соль и пароль и возвращает bcrypt-хэш их конкатенации.
func GetHash(salt, password string) (string, error) {
	const op = "password.GetHash"
	hashed, err := bcrypt.GenerateFromPassword([]byte(salt+password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashed), nil
}

// CompareHash сравнивает сохранённый хэш с солью и введённым паролем.
//
// Возвращает nil, если пароль соответствует хэшу, иначе — ошибку.
func CompareHash(originalHash, salt, externalPassword string) error {
	const op = "password.CompareHash"
	if err := bcrypt.CompareHashAndPassword([]byte(originalHash), []byte(salt+externalPassword)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
