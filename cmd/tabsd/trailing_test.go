package main

import (
	"reflect"
	"testing"
)

func TestParseTrailing(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want map[string][]string
	}{
		{"empty", nil, map[string][]string{}},
		{"single worker no args", []string{"worker_a"}, map[string][]string{"worker_a": nil}},
		{
			"single worker with args",
			[]string{"worker_a", "arg1", "arg2"},
			map[string][]string{"worker_a": {"arg1", "arg2"}},
		},
		{
			"two workers",
			[]string{"worker_a", "arg1", "--", "worker_b", "arg2", "arg3"},
			map[string][]string{"worker_a": {"arg1"}, "worker_b": {"arg2", "arg3"}},
		},
		{
			"trailing empty sentinel",
			[]string{"worker_a", "--"},
			map[string][]string{"worker_a": nil},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseTrailing(tc.args)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("parseTrailing(%v) = %v, want %v", tc.args, got, tc.want)
			}
		})
	}
}
