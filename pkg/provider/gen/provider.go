// Package gen defines the Provider interface for generative-text backends
// that narrate page images.
//
// A generator provider wraps a multimodal model API (e.g., Gemini or an
// OpenAI vision model) and turns an instruction prompt plus one page image
// into raw narration text. Parsing of the raw text (voice/display separation)
// is the caller's concern — providers return the model output verbatim.
//
// Implementations must be safe for concurrent use.
package gen

import "context"

// Request carries one page-narration generation call.
type Request struct {
	// Instructions is the full instruction prompt, including any per-page
	// lead-in (e.g., "導讀P.12內容。"). Providers must not mutate it.
	Instructions string

	// ImagePNG is the rendered page image, PNG-encoded.
	ImagePNG []byte
}

// Provider is the abstraction over any page-narration backend.
//
// Implementations must be safe for concurrent use. Generate must respect ctx
// cancellation and deadlines; the caller bounds every call with a timeout.
type Provider interface {
	// Generate produces the raw narration text for the page in req.
	// The text follows whatever markup convention the instruction prompt
	// requests; providers return it unmodified and untrimmed.
	Generate(ctx context.Context, req Request) (string, error)
}
