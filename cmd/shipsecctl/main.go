// Command shipsecctl is a thin client for a running shipsecd: create and
// commit workflows, start runs, poll status, cancel, and resolve human
// inputs over the REST API.
//
// Usage:
//
//	shipsecctl -server http://localhost:8080 create -name triage
//	shipsecctl update -id <wfID> -graph graph.json
//	shipsecctl commit -id <wfID>
//	shipsecctl run -id <wfID> [-inputs inputs.json]
//	shipsecctl status -run <runID>
//	shipsecctl cancel -run <runID>
//	shipsecctl resolve -id <suspensionID> -run <runID> -token <token> -status approved
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

func main() {
	server := flag.String("server", envOr("SHIPSEC_SERVER", "http://localhost:8080"), "shipsecd base URL")
	token := flag.String("token", os.Getenv("SHIPSEC_TOKEN"), "bearer token for authenticated routes")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "shipsecctl: missing command (create|update|commit|run|status|cancel|resolve)")
		os.Exit(2)
	}

	client := resty.New().SetBaseURL(*server).SetTimeout(30 * time.Second)
	if *token != "" {
		client.SetAuthToken(*token)
	}

	cmd := flag.Arg(0)
	args := flag.Args()[1:]
	if err := dispatch(client, cmd, args); err != nil {
		fmt.Fprintf(os.Stderr, "shipsecctl: %v\n", err)
		os.Exit(1)
	}
}

func dispatch(client *resty.Client, cmd string, args []string) error {
	switch cmd {
	case "create":
		return create(client, args)
	case "update":
		return update(client, args)
	case "commit":
		return commit(client, args)
	case "run":
		return startRun(client, args)
	case "status":
		return status(client, args)
	case "cancel":
		return cancel(client, args)
	case "resolve":
		return resolve(client, args)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func create(client *resty.Client, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	name := fs.String("name", "", "workflow name")
	_ = fs.Parse(args)
	return post(client, "/workflows", map[string]string{"name": *name})
}

func update(client *resty.Client, args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	id := fs.String("id", "", "workflow id")
	graphFile := fs.String("graph", "", "path to a graph JSON file")
	_ = fs.Parse(args)

	data, err := os.ReadFile(*graphFile)
	if err != nil {
		return fmt.Errorf("reading graph: %w", err)
	}
	var graph json.RawMessage = data
	resp, err := client.R().SetBody(map[string]interface{}{"graph": graph}).Put("/workflows/" + *id)
	return report(resp, err)
}

func commit(client *resty.Client, args []string) error {
	fs := flag.NewFlagSet("commit", flag.ExitOnError)
	id := fs.String("id", "", "workflow id")
	_ = fs.Parse(args)
	return post(client, "/workflows/"+*id+"/commit", nil)
}

func startRun(client *resty.Client, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	id := fs.String("id", "", "workflow id")
	inputsFile := fs.String("inputs", "", "path to a runtime-inputs JSON file")
	versionID := fs.String("version", "", "plan version id (defaults to latest)")
	_ = fs.Parse(args)

	body := map[string]interface{}{}
	if *inputsFile != "" {
		data, err := os.ReadFile(*inputsFile)
		if err != nil {
			return fmt.Errorf("reading inputs: %w", err)
		}
		body["inputs"] = json.RawMessage(data)
	}
	if *versionID != "" {
		body["versionId"] = *versionID
	}
	return post(client, "/workflows/"+*id+"/run", body)
}

func status(client *resty.Client, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	runID := fs.String("run", "", "run id")
	_ = fs.Parse(args)
	resp, err := client.R().Get("/workflows/runs/" + *runID + "/status")
	return report(resp, err)
}

func cancel(client *resty.Client, args []string) error {
	fs := flag.NewFlagSet("cancel", flag.ExitOnError)
	runID := fs.String("run", "", "run id")
	_ = fs.Parse(args)
	return post(client, "/workflows/runs/"+*runID+"/cancel", nil)
}

func resolve(client *resty.Client, args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	id := fs.String("id", "", "suspension id")
	runID := fs.String("run", "", "run id")
	token := fs.String("token", "", "single-use resolution token")
	statusArg := fs.String("status", "approved", "approved | rejected | resolved")
	comment := fs.String("comment", "", "optional response note")
	dataFile := fs.String("data", "", "path to a responseData JSON file (form suspensions)")
	_ = fs.Parse(args)

	body := map[string]interface{}{"status": *statusArg, "comment": *comment}
	if *dataFile != "" {
		data, err := os.ReadFile(*dataFile)
		if err != nil {
			return fmt.Errorf("reading response data: %w", err)
		}
		body["responseData"] = json.RawMessage(data)
	}
	resp, err := client.R().
		SetQueryParam("runId", *runID).
		SetQueryParam("token", *token).
		SetBody(body).
		Post("/humanInputs/" + *id + "/resolve")
	return report(resp, err)
}

func post(client *resty.Client, path string, body interface{}) error {
	req := client.R()
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Post(path)
	return report(resp, err)
}

func report(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if len(resp.Body()) > 0 {
		fmt.Println(string(resp.Body()))
	}
	if resp.IsError() {
		return fmt.Errorf("server returned %s", resp.Status())
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
