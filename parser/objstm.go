package parser

import (
	"context"
	"errors"
	"fmt"

	"github.com/wudi/pdfscrub/filters"
	"github.com/wudi/pdfscrub/ir/raw"
	"github.com/wudi/pdfscrub/scanner"
	"github.com/wudi/pdfscrub/security"
)

// objectStream is a decoded /Type /ObjStm stream: N pairs of (object number,
// relative offset) followed by the objects themselves.
type objectStream struct {
	nums    []int
	offsets []int64
	body    []byte
	limits  security.Limits
}

func loadObjectStream(ctx context.Context, stm *raw.StreamObj, pipe *filters.Pipeline, limits security.Limits) (*objectStream, error) {
	if typ, _ := stm.Dict.Name("Type"); typ != "ObjStm" {
		return nil, errors.New("not an object stream")
	}
	n, ok := stm.Dict.Int("N")
	if !ok || n < 0 {
		return nil, errors.New("object stream without /N")
	}
	first, ok := stm.Dict.Int("First")
	if !ok || first < 0 {
		return nil, errors.New("object stream without /First")
	}
	body, err := pipe.DecodeStream(ctx, stm)
	if err != nil {
		return nil, err
	}
	if first > int64(len(body)) {
		return nil, fmt.Errorf("/First %d beyond decoded length %d", first, len(body))
	}
	ostm := &objectStream{body: body, limits: limits}
	s := scanner.New(body[:first], scanner.Config{Limits: limits})
	for i := int64(0); i < n; i++ {
		numTok, err1 := s.Next()
		offTok, err2 := s.Next()
		if err := errors.Join(err1, err2); err != nil {
			return nil, fmt.Errorf("object stream header entry %d: %w", i, err)
		}
		if !numTok.IsInt || !offTok.IsInt {
			return nil, fmt.Errorf("object stream header entry %d is not numeric", i)
		}
		ostm.nums = append(ostm.nums, int(numTok.Int))
		ostm.offsets = append(ostm.offsets, first+offTok.Int)
	}
	return ostm, nil
}

// member parses the object at index idx.
func (o *objectStream) member(idx int) (int, raw.Object, error) {
	if idx < 0 || idx >= len(o.nums) {
		return 0, nil, fmt.Errorf("object stream index %d out of range", idx)
	}
	s := scanner.New(o.body, scanner.Config{Limits: o.limits})
	if err := s.SeekTo(o.offsets[idx]); err != nil {
		return 0, nil, err
	}
	obj, err := parseObject(s)
	if err != nil {
		return 0, nil, err
	}
	return o.nums[idx], obj, nil
}
