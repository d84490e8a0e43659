package scip

// Hand-rolled wire builders so fixtures stay readable at the byte level.

func uvarint(v uint64) []byte {
	var b []byte
	for v >= 0x80 {
		b = append(b, byte(v)|0x80)
		v >>= 7
	}
	return append(b, byte(v))
}

func bytesField(num uint64, payload []byte) []byte {
	b := uvarint(num<<3 | wireBytes)
	b = append(b, uvarint(uint64(len(payload)))...)
	return append(b, payload...)
}

func varintField(num, v uint64) []byte {
	b := uvarint(num<<3 | wireVarint)
	return append(b, uvarint(v)...)
}

func packedInts(vals ...int) []byte {
	var b []byte
	for _, v := range vals {
		b = append(b, uvarint(uint64(v))...)
	}
	return b
}

func occurrenceBytes(symbol string, rng []int, roles int) []byte {
	var b []byte
	if symbol != "" {
		b = append(b, bytesField(occurrenceFieldSymbol, []byte(symbol))...)
	}
	if rng != nil {
		b = append(b, bytesField(occurrenceFieldRange, packedInts(rng...))...)
	}
	if roles != 0 {
		b = append(b, varintField(occurrenceFieldRoleFlags, uint64(roles))...)
	}
	return b
}

func symbolBytes(symbol, displayName string, docs ...string) []byte {
	var b []byte
	if symbol != "" {
		b = append(b, bytesField(symbolFieldSymbol, []byte(symbol))...)
	}
	for _, d := range docs {
		b = append(b, bytesField(symbolFieldDocumentation, []byte(d))...)
	}
	if displayName != "" {
		b = append(b, bytesField(symbolFieldDisplayName, []byte(displayName))...)
	}
	return b
}

func documentBytes(path, language string, occurrences, symbols [][]byte) []byte {
	var b []byte
	if path != "" {
		b = append(b, bytesField(documentFieldRelativePath, []byte(path))...)
	}
	if language != "" {
		b = append(b, bytesField(documentFieldLanguage, []byte(language))...)
	}
	for _, o := range occurrences {
		b = append(b, bytesField(documentFieldOccurrence, o)...)
	}
	for _, s := range symbols {
		b = append(b, bytesField(documentFieldSymbolInfo, s)...)
	}
	return b
}

func indexBytes(documents, externalSymbols [][]byte) []byte {
	var b []byte
	for _, d := range documents {
		b = append(b, bytesField(indexFieldDocument, d)...)
	}
	for _, s := range externalSymbols {
		b = append(b, bytesField(indexFieldExternalSymbol, s)...)
	}
	return b
}
