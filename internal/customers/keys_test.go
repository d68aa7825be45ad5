package customers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyFor(t *testing.T) {
	cases := []struct {
		name  string
		ref   string
		phone string
		key   string
		ok    bool
	}{
		{name: "known customer", ref: "c-42", phone: "11 9999-0000", key: "c-42", ok: true},
		{name: "anonymous with phone", ref: AnonymousRef, phone: "(11) 99999-0000", key: "phone:11999990000", ok: true},
		{name: "blank ref with phone", ref: " ", phone: "+55 11 4000", key: "phone:55114000", ok: true},
		{name: "anonymous without phone", ref: AnonymousRef},
		{name: "anonymous punctuation only", ref: AnonymousRef, phone: "--"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, ok := KeyFor(tc.ref, tc.phone)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.key, key)
		})
	}
}
