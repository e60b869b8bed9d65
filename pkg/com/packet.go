package com

import (
	"github.com/babelcall/babelcall/pkg/api"
	"github.com/goccy/go-json"
)

type (
	In struct {
		Id      Uid             `json:"id,omitempty"`
		T       api.PT          `json:"t"`
		Payload json.RawMessage `json:"p,omitempty"`
	}
	Out struct {
		Id      string `json:"id,omitempty"`
		T       api.PT `json:"t"`
		Payload any    `json:"p,omitempty"`
	}
)
