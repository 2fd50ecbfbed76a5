// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"

	"github.com/nyaruka/phonenumbers"
)

// phoneRegion — регион, в формате которого принимаются номера телефонов.
const phoneRegion = "RU"

// Errors накапливает ошибки валидации по полям запроса.
type Errors map[string][]string

// Add добавляет сообщение об ошибке к указанному полю.
func (e Errors) Add(field, message string) {
	e[field] = append(e[field], message)
}

// Empty сообщает, что ошибок нет.
func (e Errors) Empty() bool {
	return len(e) == 0
}

// NormalizePhone проверяет номер телефона против российского формата
// и возвращает его в виде E.164.
func NormalizePhone(number string) (string, error) {
	parsed, err := phonenumbers.Parse(number, phoneRegion)
	if err != nil {
		return "", err
	}

	if !phonenumbers.IsValidNumberForRegion(parsed, phoneRegion) {
		return "", errors.New("not a valid phone number for region " + phoneRegion)
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}
