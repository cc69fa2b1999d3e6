package validation

import (
	"fmt"
	"regexp"
)

// IDPattern определяет допустимый формат адреса peer и id сцены:
// латинские буквы, цифры и символы _ - . :
var IDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:\-]+$`)

// MaxIDLen - ограничение длины поля в пакетах relay (один байт длины)
const MaxIDLen = 255

// ValidateAddress проверяет адрес peer, например wallet address 0xabc...
func ValidateAddress(address string) error {
	return validateID("address", address)
}

// ValidateSceneID проверяет id сцены
func ValidateSceneID(sceneID string) error {
	return validateID("scene id", sceneID)
}

func validateID(what, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", what)
	}

	if len(value) > MaxIDLen {
		return fmt.Errorf("%s must not exceed %d characters", what, MaxIDLen)
	}

	if !IDPattern.MatchString(value) {
		return fmt.Errorf("%s can only contain letters, numbers and _ - . :", what)
	}

	return nil
}
