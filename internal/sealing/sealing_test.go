package sealing

import (
	"errors"
	"testing"
)

func TestSealOpen(t *testing.T) {
	t.Parallel()

	salt, err := NewSalt()
	if err != nil {
		t.Fatal(err)
	}
	s, err := New("correct horse", salt)
	if err != nil {
		t.Fatal(err)
	}

	sealed, err := s.Seal("s3cr3t!")
	if err != nil {
		t.Fatal(err)
	}
	if sealed == "s3cr3t!" {
		t.Fatal("sealed value equals plaintext")
	}
	got, err := s.Open(sealed)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got != "s3cr3t!" {
		t.Errorf("Open() = %q, want %q", got, "s3cr3t!")
	}

	again, err := s.Seal("s3cr3t!")
	if err != nil {
		t.Fatal(err)
	}
	if again == sealed {
		t.Error("two seals of the same value are identical; nonce not random")
	}
}

func TestOpen_WrongPassphrase(t *testing.T) {
	t.Parallel()

	salt, _ := NewSalt()
	a, _ := New("one", salt)
	b, _ := New("two", salt)

	sealed, err := a.Seal("value")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Open(sealed); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("Open() with wrong key error = %v, want ErrDecrypt", err)
	}
}

func TestOpen_Garbage(t *testing.T) {
	t.Parallel()

	salt, _ := NewSalt()
	s, _ := New("p", salt)
	for _, in := range []string{"", "not base64!", "AAAA"} {
		if _, err := s.Open(in); !errors.Is(err, ErrDecrypt) {
			t.Errorf("Open(%q) error = %v, want ErrDecrypt", in, err)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New("", []byte("salt")); !errors.Is(err, ErrEmptyPassphrase) {
		t.Errorf("New(empty) error = %v, want ErrEmptyPassphrase", err)
	}
	if _, err := New("p", nil); err == nil {
		t.Error("New(nil salt) error = nil, want error")
	}
}
