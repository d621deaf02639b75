package registry

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/serverless/libkv"
	"github.com/serverless/libkv/store"
	etcd "github.com/serverless/libkv/store/etcd/v3"
	"go.uber.org/zap"

	"github.com/serverless/function-gateway/function"
	istrings "github.com/serverless/function-gateway/internal/strings"
)

func init() {
	etcd.Register()
}

const errKeyNotFound = "Key not found in store"

// NewKV creates a client of the etcd cluster the registry is stored in.
func NewKV(hosts []string) (store.Store, error) {
	return libkv.NewStore(
		store.ETCDV3,
		hosts,
		&store.Config{
			ConnectionTimeout: 10 * time.Second,
		},
	)
}

// LoadKV builds a registry out of applications stored under prefix, one JSON encoded
// application per key. Applications are loaded in key order. A missing prefix gives an
// empty registry.
func LoadKV(kv store.Store, prefix string, log *zap.Logger) (*Registry, error) {
	directory := istrings.EnsureSuffix(istrings.EnsurePrefix(prefix, "/"), "/")

	kvs, err := kv.List(directory, &store.ReadOptions{Consistent: true})
	if err != nil && err.Error() != errKeyNotFound {
		return nil, err
	}

	sort.Slice(kvs, func(i, j int) bool { return kvs[i].Key < kvs[j].Key })

	applications := function.Applications{}
	for _, pair := range kvs {
		// directory itself
		if len(pair.Value) == 0 {
			continue
		}

		app := &function.Application{}
		if err := json.Unmarshal(pair.Value, app); err != nil {
			return nil, &function.ErrFunctionValidation{Message: fmt.Sprintf("Application stored at %q is malformed: %s", pair.Key, err)}
		}
		applications = append(applications, app)
	}

	log.Info("Applications loaded from KV store.", zap.String("prefix", directory), zap.Int("applications", len(applications)))
	return New(applications, log)
}
