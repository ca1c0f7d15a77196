package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"TenderScanner/internal/domain"
)

// DefaultInstructions tell the model how to fill the extraction schema.
const DefaultInstructions = `Du analysierst öffentliche Ausschreibungen für Bauaufträge und füllst das vorgegebene JSON-Schema.

1. BUDGET
   - Suche nach konkreten Auftragswerten (€-Beträge, Summen). Wenn einer genannt ist, gib ihn exakt an und setze budget_is_estimate=false.
   - Wenn KEINE Zahl im Text steht, schätze eine Spanne anhand der Mengen- und Leistungsbeschreibung und setze budget_is_estimate=true:
     * Gering (kleine Reparaturen, Einzelaufträge): 5.000 - 25.000 €
     * Mittel (mittlere Projekte, Teilsanierungen): 25.000 - 100.000 €
     * Groß (Großprojekte, Neubauten, Jahresverträge): 100.000 - 500.000+ €
   - Beispiel exakt: "150.000 €". Beispiel Schätzung: "ca. 50.000 - 100.000 € (geschätzt)".

2. ANFORDERUNGEN
   - Liste jede technische Bedingung als eigenen Eintrag in requirements: Meisterpflicht, Maschinen, Zertifikate (ISO usw.), Versicherungen, Referenzen, Qualifikationen.
   - Keine Anforderungen im Text: leere Liste.

3. DETAILS
   - location: Ort/Stadt der Ausführung.
   - category: Gewerk, z.B. Dachdecker, Elektro, Tiefbau, Sanitär, Maler.
   - deadline: Abgabefrist im Format YYYY-MM-DD, sonst "k.A.".
   - description_short: professionelle Kurzbeschreibung in 1-2 Sätzen.`

// Field names in schema order; every one is required in a response.
var extractionFields = []string{
	"budget",
	"budget_is_estimate",
	"location",
	"category",
	"deadline",
	"description_short",
	"requirements",
}

var fieldDescriptions = map[string]string{
	"budget":             "Exakter Auftragswert oder geschätzte Spanne in Euro",
	"budget_is_estimate": "true, wenn das Budget geschätzt ist",
	"location":           "Ort oder Stadt der Ausführung",
	"category":           "Gewerk",
	"deadline":           "Abgabefrist als YYYY-MM-DD oder k.A.",
	"description_short":  "Kurzbeschreibung in 1-2 Sätzen",
	"requirements":       "Technische Anforderungen, ein Eintrag je Bedingung",
}

// jsonSchema is the strict JSON Schema used by OpenAI-compatible structured outputs.
func jsonSchema() map[string]any {
	properties := make(map[string]any, len(extractionFields))
	for _, name := range extractionFields {
		properties[name] = fieldSchema(name, "string", "boolean", "array")
	}
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             extractionFields,
		"additionalProperties": false,
	}
}

// geminiSchema is the same contract in the OpenAPI subset Gemini accepts.
func geminiSchema() map[string]any {
	properties := make(map[string]any, len(extractionFields))
	for _, name := range extractionFields {
		properties[name] = fieldSchema(name, "STRING", "BOOLEAN", "ARRAY")
	}
	return map[string]any{
		"type":             "OBJECT",
		"properties":       properties,
		"required":         extractionFields,
		"propertyOrdering": extractionFields,
	}
}

func fieldSchema(name, stringType, boolType, arrayType string) map[string]any {
	schema := map[string]any{"description": fieldDescriptions[name]}
	switch name {
	case "budget_is_estimate":
		schema["type"] = boolType
	case "requirements":
		schema["type"] = arrayType
		schema["items"] = map[string]any{"type": stringType}
	default:
		schema["type"] = stringType
	}
	return schema
}

func instructions(override string) string {
	if prompt := strings.TrimSpace(override); prompt != "" {
		return prompt
	}
	return DefaultInstructions
}

// decodeExtraction accepts only a JSON object with exactly the schema fields.
func decodeExtraction(raw []byte) (domain.Extraction, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.Extraction{}, fmt.Errorf("%w: response is not a JSON object: %w", domain.ErrAnalysis, err)
	}

	var missing []string
	for _, name := range extractionFields {
		if _, ok := fields[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return domain.Extraction{}, fmt.Errorf("%w: response lacks %s", domain.ErrAnalysis, strings.Join(missing, ", "))
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var out domain.Extraction
	if err := dec.Decode(&out); err != nil {
		return domain.Extraction{}, fmt.Errorf("%w: decode response: %w", domain.ErrAnalysis, err)
	}
	return normalize(out), nil
}

func normalize(ext domain.Extraction) domain.Extraction {
	ext.Budget = orUnknown(ext.Budget)
	ext.Deadline = orUnknown(ext.Deadline)
	ext.Location = strings.TrimSpace(ext.Location)
	ext.Category = strings.TrimSpace(ext.Category)
	ext.Summary = strings.TrimSpace(ext.Summary)

	requirements := make([]string, 0, len(ext.Requirements))
	for _, req := range ext.Requirements {
		if req = strings.TrimSpace(req); req != "" {
			requirements = append(requirements, req)
		}
	}
	ext.Requirements = requirements
	return ext
}

func orUnknown(value string) string {
	if value = strings.TrimSpace(value); value == "" {
		return domain.UnknownValue
	}
	return value
}
