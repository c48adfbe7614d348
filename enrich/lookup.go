// Package enrich augments candidate records with locality data derived
// from their phone numbers.
package enrich

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/hirevox/hirevox/errors"
	"github.com/hirevox/hirevox/roster"
)

// UnknownLocality is stored when the lookup has no data for a number. It
// distinguishes "looked up, nothing found" from "not yet enriched" (empty)
// so the pipeline never re-queries dead numbers.
const UnknownLocality = "unknown"

// Lookup resolves a normalized phone number to a locality string.
// Implementations return ErrNotFound when no data exists for the number
// and ErrTransient when the data source is temporarily unavailable.
type Lookup interface {
	Locality(ctx context.Context, normalized string) (string, error)
}

// OfflineLookup answers from an in-process prefix table, longest match
// wins. It ships with mainland area codes built in; mobile prefix data is
// loaded from an external table since it runs to tens of thousands of rows.
type OfflineLookup struct {
	prefixes  map[string]string
	maxPrefix int
}

// NewOfflineLookup returns a lookup seeded with the built-in table.
func NewOfflineLookup() *OfflineLookup {
	l := &OfflineLookup{prefixes: make(map[string]string)}
	for prefix, locality := range builtinPrefixes {
		l.add(prefix, locality)
	}
	return l
}

// LoadTable merges prefix rows from a CSV file (prefix,locality per line).
// Later rows win over built-ins at the same prefix length.
func (l *OfflineLookup) LoadTable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open prefix table %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 2
	for {
		row, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read prefix table %s", path)
		}
		prefix := strings.TrimSpace(row[0])
		locality := strings.TrimSpace(row[1])
		if prefix == "" || locality == "" {
			continue
		}
		l.add(prefix, locality)
	}
}

func (l *OfflineLookup) add(prefix, locality string) {
	l.prefixes[prefix] = locality
	if len(prefix) > l.maxPrefix {
		l.maxPrefix = len(prefix)
	}
}

// Locality implements Lookup. Only mainland (+86) numbers have table data.
func (l *OfflineLookup) Locality(_ context.Context, normalized string) (string, error) {
	national, ok := strings.CutPrefix(normalized, roster.DefaultRegionPrefix)
	if !ok {
		return "", errors.Wrapf(errors.ErrNotFound, "no locality data outside %s", roster.DefaultRegionPrefix)
	}

	limit := min(l.maxPrefix, len(national))
	for n := limit; n > 0; n-- {
		if locality, ok := l.prefixes[national[:n]]; ok {
			return locality, nil
		}
	}
	return "", errors.Wrapf(errors.ErrNotFound, "no locality for %s", normalized)
}

// builtinPrefixes covers mainland landline area codes for the major
// cities. Mobile prefix data comes from the external table
// (enrich.table_path), it runs to tens of thousands of rows.
var builtinPrefixes = map[string]string{
	"10":  "北京",
	"21":  "上海",
	"22":  "天津",
	"23":  "重庆",
	"20":  "广州",
	"24":  "沈阳",
	"25":  "南京",
	"27":  "武汉",
	"28":  "成都",
	"29":  "西安",
	"311": "石家庄",
	"351": "太原",
	"371": "郑州",
	"411": "大连",
	"431": "长春",
	"451": "哈尔滨",
	"511": "镇江",
	"512": "苏州",
	"531": "济南",
	"532": "青岛",
	"551": "合肥",
	"571": "杭州",
	"574": "宁波",
	"591": "福州",
	"592": "厦门",
	"731": "长沙",
	"755": "深圳",
	"756": "珠海",
	"769": "东莞",
	"771": "南宁",
	"851": "贵阳",
	"871": "昆明",
	"898": "海口",
	"931": "兰州",
	"971": "西宁",
	"991": "乌鲁木齐",
}
