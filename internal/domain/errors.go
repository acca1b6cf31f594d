package domain

import "errors"

// Ошибки доменной модели.
var (
	// ErrMissingSecret — одна из обязательных секретных привязок пуста.
	ErrMissingSecret = errors.New("required secret is empty")

	// ErrUnpinnedPackage — в manifest есть библиотека без точной версии.
	ErrUnpinnedPackage = errors.New("package version is not pinned")

	// ErrInvalidManifest — manifest не содержит runtime или библиотек.
	ErrInvalidManifest = errors.New("invalid manifest")
)
