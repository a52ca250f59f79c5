package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultChunkSize is how many rows are processed between progress reports
// and context checks.
const DefaultChunkSize = 5000

// ProgressFunc receives percent-complete (0-100) after each processed chunk.
type ProgressFunc func(percent int)

// Parser turns raw CSV text into candidate records. It is safe to reuse a
// Parser across files; each Parse call is independent.
type Parser struct {
	ChunkSize int
	now       func() time.Time
}

// NewParser creates a parser with the default chunk size.
func NewParser() *Parser {
	return &Parser{ChunkSize: DefaultChunkSize, now: time.Now}
}

// canonical field keys resolved against the header row.
const (
	colEmail              = "email"
	colFirstName          = "first_name"
	colLastName           = "last_name"
	colPhone              = "phone"
	colCountry            = "country"
	colCreatedAt          = "created_at"
	colCompletedAt        = "completed_at"
	colPercentageComplete = "percentage_completed"
	colFinalScore         = "final_score"
	colFinalGrade         = "final_grade"
	colCAStatus           = "ca_status"
	colPartnerCode        = "partner_code"
	colPartnerName        = "partner_name"
	colMembership         = "accepted_membership"
	colMarketing          = "accepted_marketing"
	colWallet             = "wallet_address"
)

// fieldSynonyms maps each canonical field to the header names accepted for
// it. Exports come from several regional tools, hence the mixed-language
// entries. Exact matches are tried first; substring fallback second.
var fieldSynonyms = map[string][]string{
	colEmail:              {"email", "e-mail", "email address", "correo", "correo electronico"},
	colFirstName:          {"first name", "firstname", "nombre", "nombres", "given name"},
	colLastName:           {"last name", "lastname", "surname", "apellido", "apellidos"},
	colPhone:              {"phone", "phone number", "telefono", "teléfono", "mobile"},
	colCountry:            {"country", "pais", "país"},
	colCreatedAt:          {"created at", "registration date", "enrollment date", "start date", "fecha de registro", "fecha de inscripcion"},
	colCompletedAt:        {"completed at", "completion date", "graduation date", "finished at", "fecha de finalizacion", "fecha de graduacion"},
	colPercentageComplete: {"percentage completed", "progress", "completion percentage", "avance", "porcentaje completado"},
	colFinalScore:         {"final score", "score", "puntaje", "nota final"},
	colFinalGrade:         {"final grade", "grade", "result", "resultado", "calificacion"},
	colCAStatus:           {"ca status", "ambassador status", "status", "estado"},
	colPartnerCode:        {"partner code", "community code", "codigo", "código", "code"},
	colPartnerName:        {"partner name", "community", "community name", "comunidad", "partner"},
	colMembership:         {"accepted membership", "membership", "member", "miembro", "joined community"},
	colMarketing:          {"accepted marketing", "marketing", "newsletter", "subscribe", "marketing consent"},
	colWallet:             {"wallet address", "wallet", "billetera", "direccion de billetera"},
}

// Parse converts raw CSV text into records. Malformed rows are skipped;
// only structural problems (empty file, missing email column) fail the
// whole file. Progress is reported after every chunk, and ctx is checked
// at each chunk boundary so large files stay cancellable.
func (p *Parser) Parse(ctx context.Context, raw string, progress ProgressFunc) ([]*Record, error) {
	raw = strings.TrimPrefix(raw, "\ufeff")

	lines := splitLines(raw)
	if len(lines) == 0 {
		return nil, NewParseError("the file is empty")
	}
	if len(lines) < 2 {
		return nil, NewParseError("the file contains no data rows")
	}

	delimiter := detectDelimiter(lines[0])
	headers := normalizeHeaders(splitLine(lines[0], delimiter))
	columns := resolveColumns(headers)

	if _, ok := columns[colEmail]; !ok {
		if looksLikeRegistryFile(headers) {
			return nil, NewParseError("this looks like a partner registry file, not a certification export: upload the full export instead")
		}
		return nil, NewParseError("could not find an email column in the file")
	}

	chunkSize := p.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	ingestedAt := p.now()
	batchID := uuid.New().String()
	rows := lines[1:]
	records := make([]*Record, 0, len(rows))

	for offset := 0; offset < len(rows); offset += chunkSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := offset + chunkSize
		if end > len(rows) {
			end = len(rows)
		}

		for i, line := range rows[offset:end] {
			fields := splitLine(line, delimiter)
			if len(fields) < 2 {
				continue
			}
			records = append(records, p.buildRecord(fields, columns, offset+i, ingestedAt, batchID))
		}

		if progress != nil {
			progress(end * 100 / len(rows))
		}
	}

	return records, nil
}

func (p *Parser) buildRecord(fields []string, columns map[string]int, row int, ingestedAt time.Time, batchID string) *Record {
	get := func(key string) string {
		idx, ok := columns[key]
		if !ok || idx >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[idx])
	}

	code, name := resolvePartner(get(colPartnerCode), get(colPartnerName))

	return &Record{
		ID:                  fmt.Sprintf("%d-%d", ingestedAt.UnixMilli(), row),
		BatchID:             batchID,
		Email:               get(colEmail),
		FirstName:           get(colFirstName),
		LastName:            get(colLastName),
		Phone:               get(colPhone),
		Country:             get(colCountry),
		CreatedAt:           parseDateOr(get(colCreatedAt), ingestedAt),
		CompletedAt:         parseOptionalDate(get(colCompletedAt), ingestedAt),
		PercentageCompleted: parseInt(get(colPercentageComplete)),
		FinalScore:          parseInt(get(colFinalScore)),
		FinalGrade:          parseGrade(get(colFinalGrade)),
		CAStatus:            get(colCAStatus),
		PartnerCode:         code,
		PartnerName:         name,
		AcceptedMembership:  parseBool(get(colMembership)),
		AcceptedMarketing:   parseBool(get(colMarketing)),
		WalletAddress:       get(colWallet),
	}
}

// resolvePartner applies the affiliation fallback chain: trim an embedded
// " - " suffix off the code, mirror code and name into each other when one
// is missing, and default both to UNKNOWN when neither is present.
func resolvePartner(code, name string) (string, string) {
	if idx := strings.Index(code, " - "); idx >= 0 {
		code = strings.TrimSpace(code[:idx])
	}

	switch {
	case code == "" && name == "":
		return UnknownPartner, UnknownPartner
	case code == "":
		return name, name
	case name == "":
		return code, code
	}
	return code, name
}

func splitLines(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\n' || r == '\r'
	})

	lines := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			lines = append(lines, part)
		}
	}
	return lines
}

// detectDelimiter picks the majority delimiter in the header line among
// comma, semicolon and tab. Comma wins ties.
func detectDelimiter(header string) rune {
	best := ','
	bestCount := strings.Count(header, ",")

	for _, candidate := range []rune{';', '\t'} {
		if count := strings.Count(header, string(candidate)); count > bestCount {
			best = candidate
			bestCount = count
		}
	}
	return best
}

// splitLine splits one CSV line on the delimiter, honoring quoted fields.
// A doubled quote inside a quoted field is one literal quote character.
func splitLine(line string, delimiter rune) []string {
	var fields []string
	var current strings.Builder
	inQuotes := false

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"':
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				current.WriteRune('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case r == delimiter && !inQuotes:
			fields = append(fields, unwrapQuotes(current.String()))
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	fields = append(fields, unwrapQuotes(current.String()))
	return fields
}

func unwrapQuotes(field string) string {
	field = strings.TrimSpace(field)
	if len(field) >= 2 && strings.HasPrefix(field, `"`) && strings.HasSuffix(field, `"`) {
		field = field[1 : len(field)-1]
	}
	return field
}

func normalizeHeaders(headers []string) []string {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = strings.Join(strings.Fields(strings.ToLower(h)), " ")
	}
	return normalized
}

// resolveColumns maps each canonical field to a header index. Exact synonym
// matches are resolved first; remaining fields fall back to substring
// containment in either direction. The two phases are deliberately ordered
// so a fuzzy match never shadows an exact one.
func resolveColumns(headers []string) map[string]int {
	columns := make(map[string]int, len(fieldSynonyms))

	for field, synonyms := range fieldSynonyms {
		for _, synonym := range synonyms {
			for idx, header := range headers {
				if header == synonym {
					columns[field] = idx
					break
				}
			}
			if _, ok := columns[field]; ok {
				break
			}
		}
	}

	for field, synonyms := range fieldSynonyms {
		if _, ok := columns[field]; ok {
			continue
		}
		for _, synonym := range synonyms {
			for idx, header := range headers {
				if header == "" {
					continue
				}
				if strings.Contains(header, synonym) || strings.Contains(synonym, header) {
					columns[field] = idx
					break
				}
			}
			if _, ok := columns[field]; ok {
				break
			}
		}
	}

	return columns
}

// looksLikeRegistryFile reports whether the header shape matches the narrow
// partner registry export (a partner/code-like column and fewer than five
// columns total), so the error message can point the user at the right file.
func looksLikeRegistryFile(headers []string) bool {
	if len(headers) >= 5 {
		return false
	}
	for _, header := range headers {
		if strings.Contains(header, "partner") || strings.Contains(header, "code") || strings.Contains(header, "codigo") {
			return true
		}
	}
	return false
}
