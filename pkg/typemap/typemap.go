package typemap

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Schema type tokens shared by the rule sets
const (
	ClobType     = "clobType"
	BlobType     = "blobType"
	DateType     = "dateType"
	TimeType     = "timeType"
	DateTimeType = "dateTimeType"
)

// Canonical names of the large object families
const (
	BinaryLargeObject    = "BINARY LARGE OBJECT"
	CharacterLargeObject = "CHARACTER LARGE OBJECT"
)

// Default thresholds above which a value leaves the table document
const (
	DefaultClobThreshold = 4000
	DefaultBlobThreshold = 2000
)

// ErrUnsupportedType is returned when a rule set refuses a type
var ErrUnsupportedType = errors.New("unsupported type")

// Thresholds bound the declared lengths that still map to inline types
type Thresholds struct {
	Clob int
	Blob int64
}

// DefaultThresholds returns the usual 4000 chars / 2000 bytes bounds
func DefaultThresholds() Thresholds {
	return Thresholds{Clob: DefaultClobThreshold, Blob: DefaultBlobThreshold}
}

// Rule pairs a matcher with the emitter used when it matches
type Rule struct {
	Match func(sqlType string) bool
	Emit  func(sqlType string) (string, error)
}

// Result is the outcome of mapping one type
type Result struct {
	Token string
	// Downgraded is set when the type was not understood and stored as text
	Downgraded bool
}

// Mapper maps normalized SQL type names to schema type tokens
type Mapper struct {
	name     string
	rules    []Rule
	fallback func(sqlType string) (Result, error)
}

// Name returns the rule set name
func (m *Mapper) Name() string {
	return m.name
}

// Map evaluates the rules in order and returns the first match
func (m *Mapper) Map(sqlType string) (Result, error) {
	normalized := Normalize(sqlType)
	for _, rule := range m.rules {
		if !rule.Match(normalized) {
			continue
		}
		token, err := rule.Emit(normalized)
		if err != nil {
			return Result{}, err
		}
		return Result{Token: token}, nil
	}
	return m.fallback(normalized)
}

// IsLarge reports whether a token is one of the LOB container types
func IsLarge(token string) bool {
	return token == ClobType || token == BlobType
}

var (
	spaceRun    = regexp.MustCompile(`\s+`)
	parenSpaces = regexp.MustCompile(`\s*([(),])\s*`)
)

// Normalize upper-cases a type name and canonicalizes its whitespace
func Normalize(sqlType string) string {
	s := strings.ToUpper(strings.TrimSpace(sqlType))
	s = spaceRun.ReplaceAllString(s, " ")
	s = parenSpaces.ReplaceAllString(s, "$1")
	// "VARCHAR (10)" becomes "VARCHAR(10)", keep the space before WITH
	return strings.ReplaceAll(s, ")WITH", ") WITH")
}

// LOBKind returns the canonical large object family of a type, if any
func LOBKind(sqlType string) (string, bool) {
	switch Normalize(sqlType) {
	case BinaryLargeObject, "BLOB":
		return BinaryLargeObject, true
	case CharacterLargeObject, "CLOB", "NATIONAL CHARACTER LARGE OBJECT", "NCLOB":
		return CharacterLargeObject, true
	}
	return "", false
}

var composedPattern = regexp.MustCompile(`(^ARRAY|^ROW\(|^STRUCT|^MULTISET| ARRAY(\[\d+\])?$| MULTISET$)`)

// IsComposed reports whether a type is an array or structured type
func IsComposed(sqlType string) bool {
	return composedPattern.MatchString(Normalize(sqlType))
}

func exact(name string, token string) Rule {
	return Rule{
		Match: func(s string) bool { return s == name },
		Emit:  func(string) (string, error) { return token, nil },
	}
}

func pattern(expr string, token string) Rule {
	re := regexp.MustCompile(expr)
	return Rule{
		Match: re.MatchString,
		Emit:  func(string) (string, error) { return token, nil },
	}
}

// bounded maps a length-parameterized type to large when its length
// exceeds limit. The expression must capture the length as group 1.
func bounded(expr string, limit int64, large string, small string) Rule {
	re := regexp.MustCompile(expr)
	return Rule{
		Match: re.MatchString,
		Emit: func(s string) (string, error) {
			m := re.FindStringSubmatch(s)
			n, err := strconv.ParseInt(m[1], 10, 64)
			if err != nil {
				return "", fmt.Errorf("failed to parse length of %s: %w", s, err)
			}
			if n > limit {
				return large, nil
			}
			return small, nil
		},
	}
}

func downgrade(string) (Result, error) {
	return Result{Token: "xs:string", Downgraded: true}, nil
}

func refuseComposed(s string) (Result, error) {
	if IsComposed(s) {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedType, s)
	}
	return downgrade(s)
}

func refuse(s string) (Result, error) {
	return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedType, s)
}

func characterRules(th Thresholds, small string) []Rule {
	limit := int64(th.Clob)
	return []Rule{
		bounded(`^CHARACTER VARYING\((\d+)\)$`, limit, ClobType, small),
		bounded(`^CHARACTER\((\d+)\)$`, limit, ClobType, small),
		bounded(`^NATIONAL CHARACTER VARYING\((\d+)\)$`, limit, ClobType, small),
		bounded(`^NATIONAL CHARACTER\((\d+)\)$`, limit, ClobType, small),
	}
}

// SQL99 is the rule set of the SIARD 1 profile. Unknown and composed
// types are stored as xs:string.
func SQL99(th Thresholds) *Mapper {
	rules := []Rule{
		exact("BINARY LARGE OBJECT", BlobType),
		exact("BIT VARYING", "xs:hexBinary"),
		exact("BIT", "xs:hexBinary"),
		exact("BLOB", BlobType),
		exact("BOOLEAN", "xs:boolean"),
		exact("CHARACTER LARGE OBJECT", ClobType),
		exact("CHARACTER VARYING", "xs:string"),
		exact("CHARACTER", "xs:string"),
		exact("CLOB", ClobType),
		exact("DATE", "xs:date"),
		exact("DECIMAL", "xs:decimal"),
		exact("DOUBLE PRECISION", "xs:float"),
		exact("DOUBLE", "xs:float"),
		exact("FLOAT", "xs:float"),
		exact("INTEGER", "xs:integer"),
		exact("NATIONAL CHARACTER LARGE OBJECT", ClobType),
		exact("NATIONAL CHARACTER VARYING", "xs:string"),
		exact("NATIONAL CHARACTER", "xs:string"),
		exact("NUMERIC", "xs:decimal"),
		exact("REAL", "xs:float"),
		exact("SMALLINT", "xs:integer"),
		exact("TIME WITH TIME ZONE", "xs:time"),
		exact("TIME", "xs:time"),
		exact("TIMESTAMP WITH TIME ZONE", "xs:dateTime"),
		exact("TIMESTAMP", "xs:dateTime"),
		exact("BINARY VARYING", "xs:hexBinary"),
		exact("BINARY", "xs:hexBinary"),

		pattern(`^BIT VARYING\(\d+\)$`, "xs:hexBinary"),
		pattern(`^BIT\(\d+\)$`, "xs:hexBinary"),
		bounded(`^BINARY VARYING\((\d+)\)$`, th.Blob, BlobType, "xs:hexBinary"),
		bounded(`^BINARY\((\d+)\)$`, th.Blob, BlobType, "xs:hexBinary"),
	}
	rules = append(rules, characterRules(th, "xs:string")...)
	rules = append(rules,
		pattern(`^DECIMAL\(\d+(,\d+)?\)$`, "xs:decimal"),
		pattern(`^FLOAT\(\d+\)$`, "xs:float"),
		pattern(`^NUMERIC\(\d+(,\d+)?\)$`, "xs:decimal"),
		pattern(`^TIME\(\d+\)( WITH TIME ZONE)?$`, "xs:time"),
		pattern(`^TIMESTAMP\(\d+\)( WITH TIME ZONE)?$`, "xs:dateTime"),
	)
	return &Mapper{name: "sql99", rules: rules, fallback: downgrade}
}

// SQL2008 is the rule set of the SIARD 2 profiles. Composed types are
// refused, unknown simple types are stored as xs:string.
func SQL2008(th Thresholds) *Mapper {
	rules := []Rule{
		exact("BINARY LARGE OBJECT", BlobType),
		exact("BINARY VARYING", BlobType),
		exact("BINARY", BlobType),
		exact("BIT VARYING", BlobType),
		exact("BIT", BlobType),
		exact("BLOB", BlobType),
		exact("BOOLEAN", "xs:boolean"),
		exact("CHARACTER LARGE OBJECT", ClobType),
		exact("CHARACTER VARYING", "xs:string"),
		exact("CHARACTER", "xs:string"),
		exact("CLOB", ClobType),
		exact("DATE", DateType),
		exact("DECIMAL", "xs:decimal"),
		exact("DOUBLE PRECISION", "xs:double"),
		exact("DOUBLE", "xs:float"),
		exact("FLOAT", "xs:double"),
		exact("INTEGER", "xs:integer"),
		exact("NATIONAL CHARACTER LARGE OBJECT", ClobType),
		exact("NATIONAL CHARACTER VARYING", "xs:string"),
		exact("NATIONAL CHARACTER", "xs:string"),
		exact("NUMERIC", "xs:decimal"),
		exact("REAL", "xs:float"),
		exact("SMALLINT", "xs:integer"),
		exact("TIME WITH TIME ZONE", TimeType),
		exact("TIME", TimeType),
		exact("TIMESTAMP WITH TIME ZONE", DateTimeType),
		exact("TIMESTAMP", DateTimeType),

		pattern(`^BIT VARYING\(\d+\)$`, BlobType),
		pattern(`^BIT\(\d+\)$`, BlobType),
		pattern(`^BINARY\(\d+\)$`, BlobType),
		pattern(`^BINARY VARYING\(\d+\)$`, BlobType),
	}
	rules = append(rules, characterRules(th, "xs:string")...)
	rules = append(rules,
		pattern(`^DECIMAL\(\d+(,\d+)?\)$`, "xs:decimal"),
		pattern(`^FLOAT\(\d+\)$`, "xs:float"),
		pattern(`^NUMERIC\(\d+(,\d+)?\)$`, "xs:decimal"),
		pattern(`^TIME\(\d+\)( WITH TIME ZONE)?$`, TimeType),
		pattern(`^TIMESTAMP\(\d+\)( WITH TIME ZONE)?$`, DateTimeType),
	)
	return &Mapper{name: "sql2008", rules: rules, fallback: refuseComposed}
}

// DK is the rule set of the SIARD-DK profile. BLOB columns hold document
// ids and CLOB columns hold inline text. Anything else is refused.
func DK() *Mapper {
	rules := []Rule{
		exact("BINARY LARGE OBJECT", "xs:integer"),
		exact("BLOB", "xs:integer"),
		exact("BOOLEAN", "xs:boolean"),
		exact("CHARACTER LARGE OBJECT", "xs:string"),
		exact("CLOB", "xs:string"),
		exact("NATIONAL CHARACTER LARGE OBJECT", "xs:string"),
		exact("CHARACTER VARYING", "xs:string"),
		exact("CHARACTER", "xs:string"),
		exact("NATIONAL CHARACTER VARYING", "xs:string"),
		exact("NATIONAL CHARACTER", "xs:string"),
		exact("DATE", "xs:date"),
		exact("DECIMAL", "xs:decimal"),
		exact("DOUBLE PRECISION", "xs:double"),
		exact("FLOAT", "xs:double"),
		exact("REAL", "xs:float"),
		exact("INTEGER", "xs:integer"),
		exact("SMALLINT", "xs:integer"),
		exact("NUMERIC", "xs:decimal"),
		exact("TIME WITH TIME ZONE", "xs:time"),
		exact("TIME", "xs:time"),
		exact("TIMESTAMP WITH TIME ZONE", "xs:dateTime"),
		exact("TIMESTAMP", "xs:dateTime"),

		pattern(`^CHARACTER VARYING\(\d+\)$`, "xs:string"),
		pattern(`^CHARACTER\(\d+\)$`, "xs:string"),
		pattern(`^NATIONAL CHARACTER VARYING\(\d+\)$`, "xs:string"),
		pattern(`^NATIONAL CHARACTER\(\d+\)$`, "xs:string"),
		pattern(`^DECIMAL\(\d+(,\d+)?\)$`, "xs:decimal"),
		pattern(`^NUMERIC\(\d+(,\d+)?\)$`, "xs:decimal"),
		pattern(`^FLOAT\(\d+\)$`, "xs:double"),
	}
	return &Mapper{name: "siard-dk", rules: rules, fallback: refuse}
}
