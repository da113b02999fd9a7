package codegen

import (
	"strings"
	"sync"
	"testing"
)

func TestNewBase62(t *testing.T) {
	if NewBase62() == nil {
		t.Fatal("NewBase62() returned nil")
	}
}

func TestBase62Generator_Generate(t *testing.T) {
	t.Run("generates code of requested length", func(t *testing.T) {
		gen := NewBase62()

		for _, length := range []int{1, 5, DefaultLength, 12, 32, 64} {
			code, err := gen.Generate(length)
			if err != nil {
				t.Fatalf("Generate(%d) unexpected error: %v", length, err)
			}
			if len(code) != length {
				t.Errorf("Generate(%d) returned length %d, want %d", length, len(code), length)
			}
		}
	})

	t.Run("generates distinct codes", func(t *testing.T) {
		gen := NewBase62()
		seen := make(map[string]bool)

		for i := 0; i < 1000; i++ {
			code, err := gen.Generate(DefaultLength)
			if err != nil {
				t.Fatalf("Generate() unexpected error: %v", err)
			}
			if seen[code] {
				t.Errorf("Generate() produced duplicate code: %q", code)
			}
			seen[code] = true
		}
	})

	t.Run("generates only base62 characters", func(t *testing.T) {
		gen := NewBase62()

		for _, length := range []int{10, 50, 100} {
			code, err := gen.Generate(length)
			if err != nil {
				t.Fatalf("Generate(%d) unexpected error: %v", length, err)
			}
			for i, char := range code {
				if !strings.ContainsRune(base62Chars, char) {
					t.Errorf("Generate(%d) produced invalid character %c at position %d", length, char, i)
				}
			}
		}
	})

	t.Run("returns error for non-positive length", func(t *testing.T) {
		gen := NewBase62()

		for _, length := range []int{0, -1} {
			if _, err := gen.Generate(length); err == nil {
				t.Errorf("Generate(%d) expected error, got nil", length)
			}
		}
	})

	t.Run("concurrent generation is safe", func(t *testing.T) {
		gen := NewBase62()

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					if _, err := gen.Generate(DefaultLength); err != nil {
						t.Errorf("Generate() unexpected error: %v", err)
					}
				}
			}()
		}
		wg.Wait()
	})
}
