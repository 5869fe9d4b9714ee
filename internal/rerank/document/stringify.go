package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/lk2023060901/rerank-gateway/internal/rerank/types"
)

// CircularMarker replaces a value that refers back to one of its ancestors
const CircularMarker = `"[Circular]"`

// Stringify renders a value as compact JSON with sorted object keys.
// Self-referential maps and slices are rendered as CircularMarker instead of failing.
func Stringify(v any) string {
	s := &serializer{stack: make(map[uintptr]struct{})}
	var sb strings.Builder
	s.write(&sb, v)
	return sb.String()
}

type serializer struct {
	stack map[uintptr]struct{}
}

func (s *serializer) write(sb *strings.Builder, v any) {
	switch val := v.(type) {
	case nil:
		sb.WriteString("null")
	case string:
		writeJSON(sb, val)
	case bool:
		sb.WriteString(strconv.FormatBool(val))
	case float64:
		writeFloat(sb, val)
	case float32:
		writeFloat(sb, float64(val))
	case json.Number:
		sb.WriteString(val.String())
	case types.Document:
		s.write(sb, val.Value())
	case map[string]any:
		s.writeMap(sb, val)
	case []any:
		s.writeSlice(sb, val)
	default:
		writeJSON(sb, val)
	}
}

func (s *serializer) writeMap(sb *strings.Builder, m map[string]any) {
	ptr := reflect.ValueOf(m).Pointer()
	if !s.enter(ptr) {
		sb.WriteString(CircularMarker)
		return
	}
	defer s.leave(ptr)

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		writeJSON(sb, k)
		sb.WriteByte(':')
		s.write(sb, m[k])
	}
	sb.WriteByte('}')
}

func (s *serializer) writeSlice(sb *strings.Builder, items []any) {
	// zero-length slices cannot contain themselves
	if len(items) > 0 {
		ptr := reflect.ValueOf(items).Pointer()
		if !s.enter(ptr) {
			sb.WriteString(CircularMarker)
			return
		}
		defer s.leave(ptr)
	}

	sb.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			sb.WriteByte(',')
		}
		s.write(sb, item)
	}
	sb.WriteByte(']')
}

func (s *serializer) enter(ptr uintptr) bool {
	if _, seen := s.stack[ptr]; seen {
		return false
	}
	s.stack[ptr] = struct{}{}
	return true
}

func (s *serializer) leave(ptr uintptr) {
	delete(s.stack, ptr)
}

func writeFloat(sb *strings.Builder, f float64) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		sb.WriteString("null")
		return
	}
	sb.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
}

func writeJSON(sb *strings.Builder, v any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		// typed values json cannot encode (channels, funcs, typed cycles)
		buf.Reset()
		_ = enc.Encode(fmt.Sprintf("%v", v))
	}
	sb.Write(bytes.TrimRight(buf.Bytes(), "\n"))
}
