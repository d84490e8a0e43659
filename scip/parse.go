package scip

// Field numbers in the index wire schema. Nesting: an Index holds Documents
// and external SymbolInfos; a Document holds Occurrences and inline
// SymbolInfos.
const (
	indexFieldDocument       = 3
	indexFieldExternalSymbol = 4

	documentFieldRelativePath = 1
	documentFieldLanguage     = 4
	documentFieldOccurrence   = 5
	documentFieldSymbolInfo   = 6

	occurrenceFieldSymbol    = 1
	occurrenceFieldRange     = 3
	occurrenceFieldRoleFlags = 4

	symbolFieldSymbol        = 1
	symbolFieldDocumentation = 3
	symbolFieldDisplayName   = 7
)

// Role bits carried on an occurrence.
const (
	RoleDefinition = 1 << 0
	RoleImport     = 1 << 1
	RoleWrite      = 1 << 2
	RoleRead       = 1 << 3
)

// Document is one source file's slice of the index.
type Document struct {
	RelativePath string
	Language     string
	Occurrences  []Occurrence
	Symbols      []SymbolInfo

	// Dropped counts occurrences discarded for short or inverted ranges
	// or a missing symbol.
	Dropped int
}

// Occurrence ties a symbol to a source range with role flags.
type Occurrence struct {
	Symbol    string
	StartLine int
	StartChar int
	EndLine   int
	EndChar   int
	RoleFlags int
}

// SymbolInfo carries cross-document symbol metadata.
type SymbolInfo struct {
	Symbol        string
	DisplayName   string
	Documentation string
}

// parseDocument decodes one Document message. Wire-level damage anywhere
// inside the message fails the whole document.
func parseDocument(buf []byte) (*Document, error) {
	doc := &Document{}
	r := NewReader(buf)
	for !r.Done() {
		tag, err := r.Uvarint()
		if err != nil {
			return nil, err
		}
		field, wt := tag>>3, tag&7
		if wt != wireBytes {
			if err := r.Skip(wt); err != nil {
				return nil, err
			}
			continue
		}
		raw, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		switch field {
		case documentFieldRelativePath:
			doc.RelativePath = string(raw)
		case documentFieldLanguage:
			doc.Language = string(raw)
		case documentFieldOccurrence:
			occ, err := parseOccurrence(raw)
			if err != nil {
				return nil, err
			}
			if occ == nil {
				doc.Dropped++
				continue
			}
			doc.Occurrences = append(doc.Occurrences, *occ)
		case documentFieldSymbolInfo:
			info, err := parseSymbolInfo(raw)
			if err != nil {
				return nil, err
			}
			if info != nil {
				doc.Symbols = append(doc.Symbols, *info)
			}
		}
	}
	return doc, nil
}

// parseOccurrence decodes one Occurrence message. Returns nil for rows that
// decode cleanly but cannot be stored: no symbol, fewer than four range
// values, or a range whose start sorts after its end.
func parseOccurrence(buf []byte) (*Occurrence, error) {
	occ := &Occurrence{}
	var rng []int

	r := NewReader(buf)
	for !r.Done() {
		tag, err := r.Uvarint()
		if err != nil {
			return nil, err
		}
		field, wt := tag>>3, tag&7
		switch {
		case field == occurrenceFieldSymbol && wt == wireBytes:
			raw, err := r.Bytes()
			if err != nil {
				return nil, err
			}
			occ.Symbol = string(raw)
		case field == occurrenceFieldRange && wt == wireBytes:
			raw, err := r.Bytes()
			if err != nil {
				return nil, err
			}
			rng, err = parseRange(raw)
			if err != nil {
				return nil, err
			}
		case field == occurrenceFieldRoleFlags && wt == wireVarint:
			v, err := r.Uvarint()
			if err != nil {
				return nil, err
			}
			occ.RoleFlags = int(v)
		default:
			if err := r.Skip(wt); err != nil {
				return nil, err
			}
		}
	}

	if occ.Symbol == "" || len(rng) < 4 {
		return nil, nil
	}
	occ.StartLine, occ.StartChar, occ.EndLine, occ.EndChar = rng[0], rng[1], rng[2], rng[3]
	if occ.EndLine < occ.StartLine || (occ.EndLine == occ.StartLine && occ.EndChar < occ.StartChar) {
		return nil, nil
	}
	return occ, nil
}

// parseRange decodes a packed varint blob into ints.
func parseRange(buf []byte) ([]int, error) {
	var out []int
	r := NewReader(buf)
	for !r.Done() {
		v, err := r.Uvarint()
		if err != nil {
			return nil, err
		}
		out = append(out, int(v))
	}
	return out, nil
}

// parseSymbolInfo decodes one SymbolInfo message. Repeated documentation
// fields are joined with a blank line. Returns nil when the symbol name is
// missing, since the row cannot be keyed.
func parseSymbolInfo(buf []byte) (*SymbolInfo, error) {
	info := &SymbolInfo{}

	r := NewReader(buf)
	for !r.Done() {
		tag, err := r.Uvarint()
		if err != nil {
			return nil, err
		}
		field, wt := tag>>3, tag&7
		if wt != wireBytes {
			if err := r.Skip(wt); err != nil {
				return nil, err
			}
			continue
		}
		raw, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		switch field {
		case symbolFieldSymbol:
			info.Symbol = string(raw)
		case symbolFieldDisplayName:
			info.DisplayName = string(raw)
		case symbolFieldDocumentation:
			if info.Documentation != "" {
				info.Documentation += "\n\n"
			}
			info.Documentation += string(raw)
		}
	}

	if info.Symbol == "" {
		return nil, nil
	}
	return info, nil
}
