package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Manifest — неизменяемый, версионированный набор зависимостей,
// которые нужны scanner-скрипту: runtime и библиотеки с точными версиями.
type Manifest struct {
	// Runtime — интерпретатор и его версия.
	Runtime RuntimeSpec `json:"runtime"`

	// Packages — библиотеки, устанавливаемые перед запуском.
	Packages []Package `json:"packages"`
}

// RuntimeSpec — описание runtime.
type RuntimeSpec struct {
	// Name — имя исполняемого файла, например "python3.9".
	Name string `json:"name"`

	// Version — ожидаемая версия, например "3.9".
	Version string `json:"version"`
}

// Package — библиотека с зафиксированной версией.
type Package struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// DefaultManifest возвращает manifest scanner-скрипта:
// Python 3.9 и четыре библиотеки.
func DefaultManifest() Manifest {
	return Manifest{
		Runtime: RuntimeSpec{Name: "python3.9", Version: "3.9"},
		Packages: []Package{
			{Name: "requests", Version: "2.31.0"},
			{Name: "pandas", Version: "2.0.3"},
			{Name: "yfinance", Version: "0.2.36"},
			{Name: "twilio", Version: "8.11.0"},
		},
	}
}

// Validate проверяет, что runtime задан и каждая библиотека закреплена
// на точной версии (без диапазонов и "latest").
func (m Manifest) Validate() error {
	if m.Runtime.Name == "" || m.Runtime.Version == "" {
		return fmt.Errorf("%w: runtime name and version are required", ErrInvalidManifest)
	}
	if len(m.Packages) == 0 {
		return fmt.Errorf("%w: no packages", ErrInvalidManifest)
	}
	seen := make(map[string]bool, len(m.Packages))
	for _, p := range m.Packages {
		if p.Name == "" {
			return fmt.Errorf("%w: package with empty name", ErrInvalidManifest)
		}
		if seen[strings.ToLower(p.Name)] {
			return fmt.Errorf("%w: duplicate package %s", ErrInvalidManifest, p.Name)
		}
		seen[strings.ToLower(p.Name)] = true
		if !isPinned(p.Version) {
			return fmt.Errorf("%w: %s %q", ErrUnpinnedPackage, p.Name, p.Version)
		}
	}
	return nil
}

// Requirements возвращает строки "name==version" в порядке manifest.
func (m Manifest) Requirements() []string {
	reqs := make([]string, len(m.Packages))
	for i, p := range m.Packages {
		reqs[i] = p.Name + "==" + p.Version
	}
	return reqs
}

// Digest возвращает sha256 от канонического представления manifest.
// Порядок библиотек на digest не влияет.
func (m Manifest) Digest() string {
	reqs := m.Requirements()
	sort.Strings(reqs)

	h := sha256.New()
	fmt.Fprintf(h, "runtime=%s@%s\n", m.Runtime.Name, m.Runtime.Version)
	for _, r := range reqs {
		fmt.Fprintln(h, r)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// isPinned — версия должна быть конкретной: цифры и точки, без операторов.
func isPinned(v string) bool {
	if v == "" || strings.EqualFold(v, "latest") {
		return false
	}
	if strings.ContainsAny(v, "*<>=~^!, ") {
		return false
	}
	return v[0] >= '0' && v[0] <= '9'
}
