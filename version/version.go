// Copyright (C) 2019-2026, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errMissingName = errors.New("missing application name")

type Application struct {
	Name  string `json:"name"`
	Major int    `json:"major"`
	Minor int    `json:"minor"`
	Patch int    `json:"patch"`
}

func (a *Application) String() string {
	return fmt.Sprintf("%s/%d.%d.%d", a.Name, a.Major, a.Minor, a.Patch)
}

// Semantic returns the version without the application name.
func (a *Application) Semantic() string {
	return fmt.Sprintf("v%d.%d.%d", a.Major, a.Minor, a.Patch)
}

// Compare returns a positive number if a > o, 0 if a == o, or a negative
// number if a < o. Names are ignored.
func (a *Application) Compare(o *Application) int {
	if a.Major != o.Major {
		return a.Major - o.Major
	}
	if a.Minor != o.Minor {
		return a.Minor - o.Minor
	}
	return a.Patch - o.Patch
}

// Parse parses the output of Application.String.
func Parse(s string) (*Application, error) {
	name, versions, ok := strings.Cut(s, "/")
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: %q", errMissingName, s)
	}
	parts := strings.SplitN(versions, ".", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("failed to parse %s as a version", versions)
	}
	var nums [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s as a version: %w", versions, err)
		}
		nums[i] = n
	}
	return &Application{
		Name:  name,
		Major: nums[0],
		Minor: nums[1],
		Patch: nums[2],
	}, nil
}

// String returns the line printed by the --version flag.
func String(commit string) string {
	format := "%s [database=%s"
	args := []interface{}{
		Current,
		CurrentDatabase,
	}
	if commit != "" {
		format += ", commit=%s"
		args = append(args, commit)
	}
	format += "]\n"
	return fmt.Sprintf(format, args...)
}
