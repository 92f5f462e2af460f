// Package collab defines the external-collaborator contracts the engine
// consumes but does not implement: the round-trip writer, the optional
// calculation/render engines, and the authenticated-encryption primitive
// fixture loading needs. Default, dependency-free implementations are
// provided for smoke testing; real engines are injected by the caller.
package collab

import "context"

// RoundTripWriter re-serializes a package's bytes, exercising whatever
// spreadsheet engine the caller wants triaged. It must be a deterministic
// pure function of its input: same bytes in, same bytes out, every call.
type RoundTripWriter interface {
	Write(ctx context.Context, packageBytes []byte) ([]byte, error)
}

// IdentityRoundTripWriter returns its input unchanged. Useful for smoke
// testing the rest of the pipeline without a real engine wired in; a
// package compared against itself always round-trips clean.
type IdentityRoundTripWriter struct{}

func (IdentityRoundTripWriter) Write(_ context.Context, packageBytes []byte) ([]byte, error) {
	out := make([]byte, len(packageBytes))
	copy(out, packageBytes)
	return out, nil
}

// CalculateResult is the Calculator's verdict for one package.
type CalculateResult struct {
	OK          bool
	Mismatches  map[string]int
	DurationMs  int64
}

// Calculator recomputes formula results and reports whether they match the
// package's cached values. Optional: the TriageRunner skips this step
// entirely when no Calculator is configured.
type Calculator interface {
	Calculate(ctx context.Context, packageBytes []byte) (CalculateResult, error)
}

// RenderResult is the Renderer's verdict for one package.
type RenderResult struct {
	OK         bool
	DurationMs int64
}

// Renderer drives a headless rendering engine over a package. Optional, like
// Calculator.
type Renderer interface {
	Render(ctx context.Context, packageBytes []byte) (RenderResult, error)
}

// NoopCalculator always reports ok=true with zero duration; used only in
// tests that want a recalc step present without a real engine.
type NoopCalculator struct{}

func (NoopCalculator) Calculate(_ context.Context, _ []byte) (CalculateResult, error) {
	return CalculateResult{OK: true}, nil
}

// NoopRenderer is the Renderer equivalent of NoopCalculator.
type NoopRenderer struct{}

func (NoopRenderer) Render(_ context.Context, _ []byte) (RenderResult, error) {
	return RenderResult{OK: true}, nil
}

// AuthenticatedEncryptor encrypts/decrypts fixture bytes under a key read by
// the caller from an environment variable whose name is configurable; the
// engine that consumes this contract never logs the key material itself.
type AuthenticatedEncryptor interface {
	Encrypt(plaintext, key []byte) ([]byte, error)
	Decrypt(ciphertext, key []byte) ([]byte, error)
}
