package ipc

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"resty.dev/v3"

	"github.com/matjam/vidpaper/internal/engine"
)

func newClient() *resty.Client {
	client := resty.NewWithClient(&http.Client{
		Transport: &http.Transport{
			DialContext: func(_ context.Context, _, _ string) (net.Conn, error) {
				return net.Dial("unix", SocketPath())
			},
		},
	})

	client.SetBaseURL("http://vidpaper")
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("Accept", "application/json")
	client.SetHeader("User-Agent", "vidpaper")

	return client
}

// SendCommand posts cmd to the running daemon over the control socket.
func SendCommand(cmd engine.Command) (*Response, error) {
	client := newClient()
	defer client.Close()

	result := Response{}
	response, err := client.R().SetBody(cmd).SetResult(&result).SetError(&result).
		Post("/" + string(cmd.Type))
	if err != nil {
		return nil, err
	}
	if response.StatusCode() != http.StatusOK {
		if result.Message != "" {
			return nil, fmt.Errorf("daemon: %s", result.Message)
		}
		return nil, fmt.Errorf("error sending command: %s", response.Status())
	}
	return &result, nil
}

// SendList fetches the media each output rotates through.
func SendList(output string) (*Response, error) {
	client := newClient()
	defer client.Close()

	result := Response{}
	req := client.R().SetResult(&result).SetError(&result)
	if output != "" {
		req.SetQueryParam("output", output)
	}
	response, err := req.Get("/list")
	if err != nil {
		return nil, err
	}
	if response.StatusCode() != http.StatusOK {
		if result.Message != "" {
			return nil, fmt.Errorf("daemon: %s", result.Message)
		}
		return nil, fmt.Errorf("error listing media: %s", response.Status())
	}
	return &result, nil
}

// SendStatus probes the daemon. A transport error means no instance is
// listening on the socket.
func SendStatus() (*StatusResponse, error) {
	client := newClient()
	defer client.Close()

	result := StatusResponse{}
	response, err := client.R().SetResult(&result).Get("/status")
	if err != nil {
		return nil, err
	}
	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("error getting status: %s", response.Status())
	}
	return &result, nil
}
