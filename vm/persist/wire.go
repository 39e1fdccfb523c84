// Package persist encodes session snapshots for storage and transfer.
// Snapshots are written as canonical CBOR inside a versioned envelope, so
// equal session states always produce identical bytes.
package persist

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/quill/vm"
)

// FormatVersion is the envelope version written by Marshal.
const FormatVersion = 1

var (
	// ErrUnsupportedFormat is returned for envelopes from a newer writer.
	ErrUnsupportedFormat = errors.New("persist: unsupported snapshot format")

	// ErrCorrupt is returned when the payload digest does not match.
	ErrCorrupt = errors.New("persist: snapshot digest mismatch")
)

// Envelope wraps an encoded snapshot. Digest covers Payload.
type Envelope struct {
	Version     uint8    `cbor:"1,keyasint"`
	Fingerprint string   `cbor:"2,keyasint"`
	Digest      [32]byte `cbor:"3,keyasint"`
	Payload     []byte   `cbor:"4,keyasint"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("persist: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal serializes a snapshot to CBOR bytes.
func Marshal(snap *vm.Snapshot) ([]byte, error) {
	if snap == nil {
		return nil, errors.New("persist: nil snapshot")
	}
	payload, err := cborEncMode.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("persist: marshal snapshot: %w", err)
	}
	return cborEncMode.Marshal(&Envelope{
		Version:     FormatVersion,
		Fingerprint: snap.Fingerprint,
		Digest:      sha256.Sum256(payload),
		Payload:     payload,
	})
}

// Unmarshal deserializes a snapshot written by Marshal.
func Unmarshal(data []byte) (*vm.Snapshot, error) {
	env, err := UnmarshalEnvelope(data)
	if err != nil {
		return nil, err
	}
	var snap vm.Snapshot
	if err := cbor.Unmarshal(env.Payload, &snap); err != nil {
		return nil, fmt.Errorf("persist: unmarshal snapshot: %w", err)
	}
	if snap.Fingerprint != env.Fingerprint {
		return nil, fmt.Errorf("%w: envelope and snapshot disagree on the story", ErrCorrupt)
	}
	return &snap, nil
}

// UnmarshalEnvelope decodes and verifies the envelope without decoding the
// snapshot itself.
func UnmarshalEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("persist: unmarshal envelope: %w", err)
	}
	if env.Version == 0 || env.Version > FormatVersion {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedFormat, env.Version)
	}
	if sha256.Sum256(env.Payload) != env.Digest {
		return nil, ErrCorrupt
	}
	return &env, nil
}

// Save snapshots a session and encodes it.
func Save(s *vm.Session) ([]byte, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return Marshal(snap)
}

// Load decodes data and restores it into s.
func Load(s *vm.Session, data []byte) error {
	snap, err := Unmarshal(data)
	if err != nil {
		return err
	}
	return s.Restore(snap)
}
