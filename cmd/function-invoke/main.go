package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/serverless/function-gateway/function"
	"github.com/serverless/function-gateway/internal/console"
	_ "github.com/serverless/function-gateway/runtime/awslambda"
	"github.com/serverless/function-gateway/runtime/goplugin"
	_ "github.com/serverless/function-gateway/runtime/http"
	"github.com/serverless/function-gateway/worker"
)

func main() {
	runtime := flag.String("runtime", string(function.DefaultRuntime), "Runtime executing the artifact.")
	debug := flag.Bool("debug", false, "Log invocation details.")
	flag.Parse()

	log := zap.NewNop()
	if *debug {
		log, _ = zap.NewDevelopment()
	}

	path := flag.Arg(0)
	if path == "" {
		c := console.New(os.Stdin, os.Stdout)
		var ok bool
		if path, ok = c.Prompt("Filename"); !ok || path == "" {
			os.Exit(1)
		}
	}

	plugins := goplugin.New(log)
	defer plugins.Close()
	function.RegisterRuntime(goplugin.Type, plugins)

	resp, err := worker.NewInvoker(log).Invoke(context.Background(), testRequest(function.RuntimeType(*runtime), path))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		plugins.Close()
		os.Exit(1)
	}

	fmt.Println("Response:")
	fmt.Printf("- Status         : %d\n", resp.HTTPStatus)
	fmt.Printf("- Content Length : %d\n", len(resp.Data))
	fmt.Printf("- Data           : %s\n", resp.Data)
}

func testRequest(runtime function.RuntimeType, path string) *function.Request {
	req := &function.Request{
		FunctionID:   "0000",
		FunctionName: "Test function",
		UserID:       "1111",
		Runtime:      runtime,
		EntryFile:    path,
		TriggerType:  function.TriggerHTTP,
		HTTP: &function.HTTPParameters{
			SourceIP:           "127.0.0.1",
			SourcePort:         8000,
			FullURL:            "http://www.foo.com/foo/bar?foo=bar",
			RawURL:             "/foo/bar?foo=bar",
			RawURLWithoutQuery: "/foo/bar",
			Method:             "GET",
			Querystring:        map[string]string{"foo": "bar"},
			Headers:            map[string]string{},
			ContentLength:      5,
			Data:               []byte("Hello"),
		},
	}
	// remote locations (URLs, region/function) are used as they are
	if runtime == goplugin.Type {
		req.BaseDirectory = filepath.Dir(path)
		req.EntryFile = filepath.Base(path)
	}
	return req
}
