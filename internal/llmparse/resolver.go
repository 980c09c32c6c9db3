// Package llmparse is the structured-extraction fallback for amendment
// rows the deterministic regex family could not read. It sends the
// unparsed rows in one batch and gets back one destination per row.
package llmparse

import (
	"context"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"normafetch/internal/normattiva"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultTimeout = 60 * time.Second

// Resolver calls Gemini to decode amendment destinations.
type Resolver struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	log     *zap.Logger
}

// New creates a resolver. model must name a Gemini model that supports
// JSON response schemas.
func New(ctx context.Context, apiKey, model string, timeout time.Duration, log *zap.Logger) (*Resolver, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("LLM API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("LLM model name is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Resolver{client: client, model: model, timeout: timeout, log: log}, nil
}

// destinationSchema constrains the response to one object per input row.
var destinationSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"articolo": {Type: genai.TypeString},
			"comma":    {Type: genai.TypeString},
			"lettera":  {Type: genai.TypeString},
			"numero":   {Type: genai.TypeString},
		},
	},
}

// ResolveDestinations implements normattiva.DestinationResolver. The
// whole batch shares one bounded call; per-row failures come back as nil.
func (r *Resolver) ResolveDestinations(ctx context.Context, rows []string) ([]*normattiva.Destination, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.client.Models.GenerateContent(ctx, r.model,
		genai.Text(buildPrompt(rows)),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   destinationSchema,
		})
	if err != nil {
		return nil, fmt.Errorf("llm destination parse: %w", err)
	}

	out, err := decodeDestinations(resp.Text(), len(rows))
	if err != nil {
		return nil, err
	}
	r.log.Debug("llm destinations resolved",
		zap.Int("rows", len(rows)),
		zap.Int("resolved", countResolved(out)))
	return out, nil
}

// buildPrompt numbers the rows so the model answers positionally.
func buildPrompt(rows []string) string {
	var sb strings.Builder
	sb.WriteString("Le seguenti righe descrivono modifiche a un atto normativo italiano. ")
	sb.WriteString("Per ciascuna riga estrai la destinazione della modifica come oggetto JSON ")
	sb.WriteString("con i campi articolo, comma, lettera, numero (stringa vuota se assente). ")
	sb.WriteString("Rispondi con un array della stessa lunghezza e nello stesso ordine.\n\n")
	for i, row := range rows {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, strings.TrimSpace(row))
	}
	return sb.String()
}

type destinationEntry struct {
	Articolo string `json:"articolo"`
	Comma    string `json:"comma"`
	Lettera  string `json:"lettera"`
	Numero   string `json:"numero"`
}

// decodeDestinations maps the model's JSON back onto the input rows. An
// entry without an article is unresolved (nil); a short answer leaves the
// tail unresolved instead of failing the batch.
func decodeDestinations(raw string, n int) ([]*normattiva.Destination, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var entries []destinationEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("decode llm response: %w", err)
	}

	out := make([]*normattiva.Destination, n)
	for i := 0; i < n && i < len(entries); i++ {
		e := entries[i]
		if strings.TrimSpace(e.Articolo) == "" {
			continue
		}
		out[i] = &normattiva.Destination{
			Articolo: strings.TrimSpace(e.Articolo),
			Comma:    strings.TrimSpace(e.Comma),
			Lettera:  strings.TrimSpace(e.Lettera),
			Numero:   strings.TrimSpace(e.Numero),
		}
	}
	return out, nil
}

func countResolved(dests []*normattiva.Destination) int {
	n := 0
	for _, d := range dests {
		if d != nil {
			n++
		}
	}
	return n
}
