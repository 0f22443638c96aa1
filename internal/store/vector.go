package store

import "strconv"

// vectorLiteral renders a []float32 as the text form pgvector accepts for an
// explicit ::vector cast ("[0.1,0.2,0.3]"). pgx has no first-class pgvector
// codec in this stack, so embeddings cross the wire as plain text literals
// cast on the Postgres side rather than through a typed driver value.
func vectorLiteral(v []float32) string {
	buf := make([]byte, 0, len(v)*8+2)
	buf = append(buf, '[')
	for i, f := range v {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendFloat(buf, float64(f), 'f', -1, 32)
	}
	buf = append(buf, ']')
	return string(buf)
}
