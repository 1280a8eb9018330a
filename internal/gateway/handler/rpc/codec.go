package rpc

import (
	"context"
	"encoding/json"
	"net/http"

	"connectrpc.com/connect"
)

// jsonCodec lets connect carry plain Go structs as JSON bodies.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Codec returns the option clients need to talk to these handlers.
func Codec() connect.Option {
	return connect.WithCodec(jsonCodec{})
}

// Route is one procedure path and its handler.
type Route struct {
	Path    string
	Handler http.Handler
}

func unary[Req, Res any](path string, fn func(context.Context, *connect.Request[Req]) (*connect.Response[Res], error)) Route {
	return Route{Path: path, Handler: connect.NewUnaryHandler(path, fn, connect.WithCodec(jsonCodec{}))}
}
