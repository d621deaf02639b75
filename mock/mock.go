//go:generate mockgen -package mock -destination ./runtime.go -mock_names "Runtime=MockRuntime" github.com/serverless/function-gateway/function Runtime
//go:generate mockgen -package mock -destination ./dispatcher.go github.com/serverless/function-gateway/router Dispatcher
//go:generate mockgen -package mock -destination ./store.go github.com/serverless/libkv/store Store

package mock
