package credential

import (
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

func sampleWebAuthnCredential() webauthn.Credential {
	return webauthn.Credential{
		ID:              []byte{0x01, 0x02, 0x03, 0x04},
		PublicKey:       []byte{0xAA, 0xBB},
		AttestationType: "none",
		Transport:       []protocol.AuthenticatorTransport{protocol.Internal, protocol.Hybrid},
		Flags: webauthn.CredentialFlags{
			UserPresent:    true,
			UserVerified:   true,
			BackupEligible: true,
			BackupState:    false,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:    []byte{0x10, 0x11},
			SignCount: 7,
		},
	}
}

func TestFromWebAuthnCapturesFields(t *testing.T) {
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	record, err := FromWebAuthn("account-1", sampleWebAuthnCredential(), now)
	if err != nil {
		t.Fatalf("from webauthn: %v", err)
	}

	if record.ID != EncodeID([]byte{0x01, 0x02, 0x03, 0x04}) {
		t.Fatalf("id = %q, want encoded raw id", record.ID)
	}
	if record.AccountID != "account-1" {
		t.Fatalf("account id = %q", record.AccountID)
	}
	if record.SignCount != 7 {
		t.Fatalf("sign count = %d, want 7", record.SignCount)
	}
	if !record.UserVerified || !record.BackupEligible || record.BackupState {
		t.Fatalf("flags = %+v, want UV and BE set, BS clear", record)
	}
	if len(record.Transports) != 2 || record.Transports[0] != "internal" {
		t.Fatalf("transports = %v", record.Transports)
	}
	if record.AttestationType != "none" {
		t.Fatalf("attestation type = %q", record.AttestationType)
	}
	if record.CredentialJSON == "" {
		t.Fatal("expected retained credential json")
	}
	if !record.CreatedAt.Equal(now) || !record.UpdatedAt.Equal(now) {
		t.Fatalf("timestamps = %v/%v", record.CreatedAt, record.UpdatedAt)
	}
}

func TestWebAuthnRebuildUsesStoredSignCount(t *testing.T) {
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	record, err := FromWebAuthn("account-1", sampleWebAuthnCredential(), now)
	if err != nil {
		t.Fatalf("from webauthn: %v", err)
	}

	// Simulate a later sign count update that leaves the JSON untouched.
	record.SignCount = 42

	rebuilt, err := record.WebAuthn()
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if rebuilt.Authenticator.SignCount != 42 {
		t.Fatalf("sign count = %d, want stored column value 42", rebuilt.Authenticator.SignCount)
	}
	if string(rebuilt.ID) != string([]byte{0x01, 0x02, 0x03, 0x04}) {
		t.Fatalf("raw id = %v", rebuilt.ID)
	}
	if string(rebuilt.PublicKey) != string([]byte{0xAA, 0xBB}) {
		t.Fatalf("public key = %v", rebuilt.PublicKey)
	}
}

func TestWebAuthnRejectsMalformedJSON(t *testing.T) {
	record := Credential{ID: "abc", CredentialJSON: "{not json"}
	if _, err := record.WebAuthn(); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestDescriptorRoundTrip(t *testing.T) {
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	record, err := FromWebAuthn("account-1", sampleWebAuthnCredential(), now)
	if err != nil {
		t.Fatalf("from webauthn: %v", err)
	}

	descriptor, err := record.Descriptor()
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}
	if descriptor.Type != protocol.PublicKeyCredentialType {
		t.Fatalf("type = %q", descriptor.Type)
	}
	if string(descriptor.CredentialID) != string([]byte{0x01, 0x02, 0x03, 0x04}) {
		t.Fatalf("credential id = %v", descriptor.CredentialID)
	}
	if len(descriptor.Transport) != 2 {
		t.Fatalf("transports = %v", descriptor.Transport)
	}
}

func TestDescriptorRejectsBadID(t *testing.T) {
	record := Credential{ID: "!!!not-base64url!!!"}
	if _, err := record.Descriptor(); err == nil {
		t.Fatal("expected decode error")
	}
}
