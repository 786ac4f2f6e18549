package provider

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/flowquery-dev/flowquery/fqerr"
	"github.com/flowquery-dev/flowquery/function"
)

func init() {
	function.Default.Register(function.Descriptor{
		Name:     "mongoFind",
		Category: function.Async,
		Arity:    function.Arity{Exact: 4},
		Params: []function.ParamSchema{
			{Name: "uri", Type: "string", Doc: "mongodb:// connection string"},
			{Name: "database", Type: "string"},
			{Name: "collection", Type: "string"},
			{Name: "filter", Type: "map", Doc: "query filter, as a FlowQuery map literal"},
		},
		Output: "map",
		New:    func() function.Instance { return mongoFindProvider{} },
	})
}

// mongoFindProvider streams every document matching filter in
// database.collection as a row, one map per document.
type mongoFindProvider struct{}

func (mongoFindProvider) Call(args []any) (function.AsyncIter, error) {
	uri, _ := args[0].(string)
	db, _ := args[1].(string)
	coll, _ := args[2].(string)
	filter, _ := args[3].(map[string]any)
	if filter == nil {
		filter = map[string]any{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	it := newChanIter(cancel)

	go func() {
		defer it.finish()

		client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
		if err != nil {
			it.fail(fqerr.ErrProviderIO.Wrap(err, uri, err.Error()))
			return
		}
		defer client.Disconnect(ctx)

		cur, err := client.Database(db).Collection(coll).Find(ctx, bson.M(filter))
		if err != nil {
			it.fail(fqerr.ErrProviderIO.Wrap(err, fmt.Sprintf("%s/%s.%s", uri, db, coll), err.Error()))
			return
		}
		defer cur.Close(ctx)

		for cur.Next(ctx) {
			var doc bson.M
			if err := cur.Decode(&doc); err != nil {
				it.fail(fqerr.ErrProviderIO.Wrap(err, fmt.Sprintf("%s/%s.%s", uri, db, coll), err.Error()))
				return
			}
			it.emit(function.AsyncRow{IsMap: true, Map: map[string]any(doc)})
		}
		if err := cur.Err(); err != nil {
			it.fail(fqerr.ErrProviderIO.Wrap(err, fmt.Sprintf("%s/%s.%s", uri, db, coll), err.Error()))
		}
	}()

	return it, nil
}
