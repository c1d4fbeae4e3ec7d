package sso

import "testing"

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "s3cret" {
		t.Fatal("hash must not equal the plaintext")
	}
	if err := VerifyPassword(hash, "s3cret"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if err := VerifyPassword(hash, "wrong"); err == nil {
		t.Fatal("wrong password should not verify")
	}
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	if err := VerifyPassword("not-a-bcrypt-hash", "s3cret"); err == nil {
		t.Fatal("malformed hash should not verify")
	}
}
