package chain

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// EIP712DomainType is the reserved name of the domain struct type
const EIP712DomainType = "EIP712Domain"

// Field is one member of an EIP-712 struct type
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Types maps a struct type name to its ordered members
type Types map[string][]Field

// Domain represents the EIP712 domain separator data
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract *common.Address
}

// Fields returns the EIP712Domain members present in d, in canonical order
func (d Domain) Fields() []Field {
	var fields []Field
	if d.Name != "" {
		fields = append(fields, Field{Name: "name", Type: "string"})
	}
	if d.Version != "" {
		fields = append(fields, Field{Name: "version", Type: "string"})
	}
	if d.ChainID != nil {
		fields = append(fields, Field{Name: "chainId", Type: "uint256"})
	}
	if d.VerifyingContract != nil {
		fields = append(fields, Field{Name: "verifyingContract", Type: "address"})
	}
	return fields
}

// Message returns the domain as an EIP-712 message value
func (d Domain) Message() map[string]any {
	msg := make(map[string]any, 4)
	if d.Name != "" {
		msg["name"] = d.Name
	}
	if d.Version != "" {
		msg["version"] = d.Version
	}
	if d.ChainID != nil {
		msg["chainId"] = d.ChainID
	}
	if d.VerifyingContract != nil {
		msg["verifyingContract"] = *d.VerifyingContract
	}
	return msg
}

// Separator computes the EIP712 domain separator hash
func (d Domain) Separator() (common.Hash, error) {
	types := Types{EIP712DomainType: d.Fields()}
	return HashStruct(types, EIP712DomainType, d.Message())
}

// TypedData is a complete EIP-712 signing request
type TypedData struct {
	Types       Types
	PrimaryType string
	Domain      Domain
	Message     map[string]any
}

// EncodingError reports a schema or value violation at a field path
type EncodingError struct {
	Path   string
	Type   string
	Reason string
}

func (e *EncodingError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("eip712: %s: %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("eip712: %s (%s): %s", e.Path, e.Type, e.Reason)
}

func encodingErr(path, typ, format string, args ...any) error {
	return &EncodingError{Path: path, Type: typ, Reason: fmt.Sprintf(format, args...)}
}

// HashTypedData creates the final EIP712 hash to be signed:
// keccak256("\x19\x01" ++ domainSeparator ++ hashStruct(message))
func HashTypedData(td *TypedData) (common.Hash, error) {
	domainSeparator, err := td.Domain.Separator()
	if err != nil {
		return common.Hash{}, err
	}
	if td.PrimaryType == EIP712DomainType {
		return common.Hash{}, encodingErr("", td.PrimaryType, "domain type cannot be the primary type")
	}
	structHash, err := HashStruct(td.Types, td.PrimaryType, td.Message)
	if err != nil {
		return common.Hash{}, err
	}

	data := make([]byte, 0, 2+32+32)
	data = append(data, 0x19, 0x01)
	data = append(data, domainSeparator.Bytes()...)
	data = append(data, structHash.Bytes()...)

	return crypto.Keccak256Hash(data), nil
}

// EncodeType renders the type signature of primary followed by its
// dependencies in lexicographic order.
func EncodeType(types Types, primary string) (string, error) {
	if _, ok := types[primary]; !ok {
		return "", encodingErr("", primary, "unknown struct type")
	}
	deps := make(map[string]bool)
	collectDependencies(types, primary, deps)
	delete(deps, primary)

	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range append([]string{primary}, names...) {
		b.WriteString(name)
		b.WriteByte('(')
		for i, f := range types[name] {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(f.Type)
			b.WriteByte(' ')
			b.WriteString(f.Name)
		}
		b.WriteByte(')')
	}
	return b.String(), nil
}

func collectDependencies(types Types, name string, found map[string]bool) {
	if found[name] {
		return
	}
	fields, ok := types[name]
	if !ok {
		return
	}
	found[name] = true
	for _, f := range fields {
		collectDependencies(types, baseType(f.Type), found)
	}
}

// baseType strips every array suffix from typ
func baseType(typ string) string {
	if i := strings.IndexByte(typ, '['); i >= 0 {
		return typ[:i]
	}
	return typ
}

// TypeHash returns keccak256(EncodeType(primary))
func TypeHash(types Types, primary string) (common.Hash, error) {
	enc, err := EncodeType(types, primary)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash([]byte(enc)), nil
}

// HashStruct computes keccak256(typeHash ++ encodeData(value))
func HashStruct(types Types, primary string, value map[string]any) (common.Hash, error) {
	enc := &encoder{types: types}
	return enc.hashStruct("", primary, value)
}

// EncodeValue returns the 32-byte encoding of value as typ
func EncodeValue(types Types, typ string, value any) ([]byte, error) {
	enc := &encoder{types: types}
	return enc.encodeValue(typ, typ, value)
}

type encoder struct {
	types Types
}

func (e *encoder) hashStruct(path, typ string, value map[string]any) (common.Hash, error) {
	fields, ok := e.types[typ]
	if !ok {
		return common.Hash{}, encodingErr(path, typ, "unknown struct type")
	}
	typeHash, err := TypeHash(e.types, typ)
	if err != nil {
		return common.Hash{}, err
	}

	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f.Name] = true
	}
	for key := range value {
		if !known[key] {
			return common.Hash{}, encodingErr(joinPath(path, key), typ, "field not declared in schema")
		}
	}

	buf := make([]byte, 0, 32*(len(fields)+1))
	buf = append(buf, typeHash.Bytes()...)
	for _, f := range fields {
		fieldPath := joinPath(path, f.Name)
		v, present := value[f.Name]
		if !present || isNil(v) {
			// Absent struct members hash as the zero word; absent primitives are errors.
			if _, isStruct := e.types[f.Type]; isStruct {
				buf = append(buf, make([]byte, 32)...)
				continue
			}
			return common.Hash{}, encodingErr(fieldPath, f.Type, "missing value")
		}
		word, err := e.encodeValue(fieldPath, f.Type, v)
		if err != nil {
			return common.Hash{}, err
		}
		buf = append(buf, word...)
	}
	return crypto.Keccak256Hash(buf), nil
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func (e *encoder) encodeValue(path, typ string, value any) ([]byte, error) {
	value = deref(value)

	if strings.HasSuffix(typ, "]") {
		return e.encodeArray(path, typ, value)
	}

	if _, ok := e.types[typ]; ok {
		if value == nil {
			return make([]byte, 32), nil
		}
		m, err := toMap(path, typ, value)
		if err != nil {
			return nil, err
		}
		h, err := e.hashStruct(path, typ, m)
		if err != nil {
			return nil, err
		}
		return h.Bytes(), nil
	}

	switch {
	case typ == "string":
		s, ok := value.(string)
		if !ok {
			return nil, encodingErr(path, typ, "expected string, got %T", value)
		}
		return crypto.Keccak256([]byte(s)), nil

	case typ == "bytes":
		b, err := toBytes(path, typ, value)
		if err != nil {
			return nil, err
		}
		return crypto.Keccak256(b), nil

	case typ == "bool":
		b, ok := value.(bool)
		if !ok {
			return nil, encodingErr(path, typ, "expected bool, got %T", value)
		}
		word := make([]byte, 32)
		if b {
			word[31] = 1
		}
		return word, nil

	case typ == "address":
		b, err := toBytes(path, typ, value)
		if err != nil {
			return nil, err
		}
		if len(b) != common.AddressLength {
			return nil, encodingErr(path, typ, "expected 20 bytes, got %d", len(b))
		}
		return common.LeftPadBytes(b, 32), nil

	case strings.HasPrefix(typ, "bytes"):
		n, err := strconv.Atoi(typ[len("bytes"):])
		if err != nil || n < 1 || n > 32 {
			return nil, encodingErr(path, typ, "unknown type")
		}
		b, err := toBytes(path, typ, value)
		if err != nil {
			return nil, err
		}
		if len(b) != n {
			return nil, encodingErr(path, typ, "expected %d bytes, got %d", n, len(b))
		}
		return common.RightPadBytes(b, 32), nil

	case strings.HasPrefix(typ, "uint"):
		return encodeInteger(path, typ, typ[len("uint"):], false, value)

	case strings.HasPrefix(typ, "int"):
		return encodeInteger(path, typ, typ[len("int"):], true, value)
	}

	return nil, encodingErr(path, typ, "unknown type")
}

func (e *encoder) encodeArray(path, typ string, value any) ([]byte, error) {
	open := strings.LastIndexByte(typ, '[')
	if open < 0 {
		return nil, encodingErr(path, typ, "malformed array type")
	}
	elemType := typ[:open]
	size := typ[open+1 : len(typ)-1]

	if value == nil {
		return nil, encodingErr(path, typ, "missing value")
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, encodingErr(path, typ, "expected array, got %T", value)
	}
	if size != "" {
		n, err := strconv.Atoi(size)
		if err != nil || n < 0 {
			return nil, encodingErr(path, typ, "malformed array length")
		}
		if rv.Len() != n {
			return nil, encodingErr(path, typ, "expected %d elements, got %d", n, rv.Len())
		}
	}

	buf := make([]byte, 0, 32*rv.Len())
	for i := 0; i < rv.Len(); i++ {
		word, err := e.encodeValue(fmt.Sprintf("%s[%d]", path, i), elemType, rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		buf = append(buf, word...)
	}
	return crypto.Keccak256(buf), nil
}

func encodeInteger(path, typ, bits string, signed bool, value any) ([]byte, error) {
	n, err := strconv.Atoi(bits)
	if err != nil || n < 8 || n > 256 || n%8 != 0 {
		return nil, encodingErr(path, typ, "unknown type")
	}
	v, err := toBigInt(path, typ, value)
	if err != nil {
		return nil, err
	}

	modulus := new(big.Int).Lsh(big.NewInt(1), uint(n))
	mask := new(big.Int).Sub(modulus, big.NewInt(1))
	t := new(big.Int).And(v, mask)
	if signed && t.Bit(n-1) == 1 {
		t.Sub(t, modulus)
	}

	word := new(uint256.Int)
	word.SetFromBig(t)
	b := word.Bytes32()
	return b[:], nil
}

func toBigInt(path, typ string, value any) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case *uint256.Int:
		return v.ToBig(), nil
	case json.Number:
		return parseBigInt(path, typ, v.String())
	case string:
		return parseBigInt(path, typ, v)
	case float64:
		if v != math.Trunc(v) || math.Abs(v) > 1<<53 {
			return nil, encodingErr(path, typ, "float %v is not an exact integer", v)
		}
		return big.NewInt(int64(v)), nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return big.NewInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return new(big.Int).SetUint64(rv.Uint()), nil
	}
	return nil, encodingErr(path, typ, "expected integer, got %T", value)
}

func parseBigInt(path, typ, s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			return nil, encodingErr(path, typ, "invalid hex integer %q", s)
		}
		return v, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, encodingErr(path, typ, "invalid integer %q", s)
	}
	return v, nil
}

func toBytes(path, typ string, value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case hexutil.Bytes:
		return v, nil
	case common.Address:
		return v.Bytes(), nil
	case common.Hash:
		return v.Bytes(), nil
	case string:
		b, err := hexutil.Decode(v)
		if err != nil {
			return nil, encodingErr(path, typ, "invalid hex %q: %v", v, err)
		}
		return b, nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Array && rv.Type().Elem().Kind() == reflect.Uint8 {
		b := make([]byte, rv.Len())
		reflect.Copy(reflect.ValueOf(b), rv)
		return b, nil
	}
	return nil, encodingErr(path, typ, "expected bytes, got %T", value)
}

func toMap(path, typ string, value any) (map[string]any, error) {
	if m, ok := value.(map[string]any); ok {
		return m, nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return m, nil
	}
	return nil, encodingErr(path, typ, "expected struct value, got %T", value)
}

func deref(value any) any {
	for value != nil {
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Pointer {
			return value
		}
		if rv.IsNil() {
			return nil
		}
		switch value.(type) {
		case *big.Int, *uint256.Int:
			return value
		}
		value = rv.Elem().Interface()
	}
	return value
}

func isNil(value any) bool {
	return deref(value) == nil
}
