package ai

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/scanmarket-backend/pkg/enums"
)

const promptTemplate = `Identify the product in the photo and draft a listing for a Korean second-hand marketplace.
Look closely and name the product type, brand and model as precisely as you can.
Write the title, description and price_reason in Korean.

%s

Respond with a JSON object containing:
- title: at most 15 characters, product name plus its key feature
- description: 3-5 sentences covering the product, its visible condition and use. Do not repeat the dimensions
- category: one of %s
- condition: one of %s (estimated from the photo)
- price_min: lowest expected price on the Korean used market (KRW integer)
- price_max: highest expected price on the Korean used market (KRW integer)
- price_reason: one sentence explaining the price estimate%s
`

func buildPrompt(input SuggestInput) string {
	dims := "Dimensions: unknown"
	comparison := ""
	if input.hasDims() {
		note := "measured"
		if input.DimsSource != nil && *input.DimsSource == string(enums.DimsSourceLidar) {
			note = "measured automatically by the scanner"
		}
		dims = fmt.Sprintf("Reference: measured size %gcm wide x %gcm tall x %gcm deep (%s)",
			*input.DimsWidth, *input.DimsHeight, *input.DimsDepth, note)
		comparison = "\n- dims_comparison: a short phrase comparing the size to an everyday object"
	}
	return fmt.Sprintf(promptTemplate, dims, joinValues(enums.ProductCategoryValues()), joinValues(enums.ProductConditionValues()), comparison)
}

func joinValues[T ~string](values []T) string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return strings.Join(out, ", ")
}
