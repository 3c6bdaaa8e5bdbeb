package ipc

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"resty.dev/v3"
)

func newClient() *resty.Client {
	path := SocketPath()

	client := resty.NewWithClient(&http.Client{
		Transport: &http.Transport{
			DialContext: func(_ context.Context, _, _ string) (net.Conn, error) {
				return net.Dial("unix", path)
			},
		},
	})

	client.SetBaseURL("http://shaderpaper")
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("Accept", "application/json")
	client.SetHeader("User-Agent", "shaderpaper")

	return client
}

// SendStatus fetches the running daemon's status over the control socket.
func SendStatus() (*StatusResponse, error) {
	result := StatusResponse{}

	response, err := newClient().R().SetResult(&result).Get("/status")
	if err != nil {
		return nil, err
	}
	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("error fetching status: %s", response.Status())
	}

	return &result, nil
}

// SendStop asks the daemon to shut down.
func SendStop() error {
	_, err := SendCommand(Command{Type: CommandStop})
	return err
}

// SendReload asks the daemon to re-read the active shader from disk.
func SendReload() error {
	_, err := SendCommand(Command{Type: CommandReload})
	return err
}

// SendLoad asks the daemon to switch to the shader at path.
func SendLoad(path string) error {
	_, err := SendCommand(Command{Type: CommandLoad, Args: []string{path}})
	return err
}

// SendCommand posts a command to its route and returns the daemon's
// acknowledgement.
func SendCommand(cmd Command) (*Response, error) {
	result := Response{}
	request := newClient().R().SetResult(&result)

	var (
		response *resty.Response
		err      error
	)
	switch cmd.Type {
	case CommandStop:
		response, err = request.Post("/stop")
	case CommandReload:
		response, err = request.Post("/reload")
	case CommandLoad:
		if len(cmd.Args) == 0 {
			return nil, fmt.Errorf("load command needs a shader path")
		}
		response, err = request.SetBody(LoadRequest{Path: cmd.Args[0]}).Post("/load")
	default:
		return nil, fmt.Errorf("unknown command %q", cmd.Type)
	}
	if err != nil {
		return nil, err
	}

	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("error sending command: %s", response.Status())
	}

	return &result, nil
}
