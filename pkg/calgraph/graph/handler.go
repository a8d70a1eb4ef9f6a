package graph

import (
	"context"
	"net/http"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
	"github.com/graph-gophers/graphql-transport-ws/graphqlws"

	"github.com/randalmurphal/calgraph/pkg/calgraph/loader"
)

// Handler serves queries and mutations over HTTP and subscriptions over
// websocket on the same path. HTTP requests get their loaders from
// loader.Middleware; each subscription gets an uncached set of its own.
func Handler(schema *graphql.Schema, src loader.Source, opts ...loader.Option) http.Handler {
	subs := &subscriptionService{
		schema: schema,
		src:    src,
		opts:   append(append([]loader.Option(nil), opts...), loader.WithoutCache()),
	}
	return graphqlws.NewHandlerFunc(subs, &relay.Handler{Schema: schema})
}

// subscriptionService attaches loaders to each websocket subscription.
// A subscription lives far longer than one request, so its loaders never
// cache: every delivered event reads current rows.
type subscriptionService struct {
	schema *graphql.Schema
	src    loader.Source
	opts   []loader.Option
}

func (s *subscriptionService) Subscribe(ctx context.Context, document, operationName string, variables map[string]any) (<-chan any, error) {
	ctx = loader.Attach(ctx, loader.New(s.src, s.opts...))
	return s.schema.Subscribe(ctx, document, operationName, variables)
}
