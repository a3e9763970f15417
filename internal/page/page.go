// Package page implements the offset pagination contract shared by every
// list endpoint.
package page

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
	// MaxOffset keeps offset + limit representable.
	MaxOffset = math.MaxInt - MaxLimit
)

var ErrInvalid = errors.New("invalid pagination")

// Policy decides whether Next is reported for a short page.
type Policy string

const (
	// Always reports next = offset + limit on every page.
	Always Policy = "always"
	// WhenFull reports next only when the page came back full.
	WhenFull Policy = "when-full"
)

// Request is a validated (limit, offset) pair.
type Request struct {
	Limit  int
	Offset int
}

// Cursor is the navigation block of a list response. Previous is raw
// offset arithmetic and goes negative on the first page; callers read a
// negative value as "no previous page".
type Cursor struct {
	Next     *int `json:"next"`
	Limit    int  `json:"limit"`
	Previous int  `json:"previous"`
}

// Compute is Calculator{Policy: Always}.Compute.
func Compute(limit, offset, resultCount int) Cursor {
	return Calculator{Policy: Always}.Compute(limit, offset, resultCount)
}

type Calculator struct {
	Policy Policy
}

func (c Calculator) Compute(limit, offset, resultCount int) Cursor {
	cur := Cursor{Limit: limit, Previous: offset - limit}
	if c.Policy != WhenFull || resultCount >= limit {
		next := offset + limit
		cur.Next = &next
	}
	return cur
}

// NewRequest checks limit and offset against the list contract.
func NewRequest(limit, offset int) (Request, error) {
	if limit < 1 || limit > MaxLimit {
		return Request{}, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalid, MaxLimit)
	}
	if offset < 0 || offset > MaxOffset {
		return Request{}, fmt.Errorf("%w: offset must be between 0 and %d", ErrInvalid, MaxOffset)
	}
	return Request{Limit: limit, Offset: offset}, nil
}

// Parse reads raw query values; empty strings take the defaults.
func Parse(rawLimit, rawOffset string) (Request, error) {
	limit, offset := DefaultLimit, 0
	var err error
	if rawLimit != "" {
		if limit, err = strconv.Atoi(rawLimit); err != nil {
			return Request{}, fmt.Errorf("%w: limit is not an integer", ErrInvalid)
		}
	}
	if rawOffset != "" {
		if offset, err = strconv.Atoi(rawOffset); err != nil {
			return Request{}, fmt.Errorf("%w: offset is not an integer", ErrInvalid)
		}
	}
	return NewRequest(limit, offset)
}
