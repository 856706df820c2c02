// Command parsec-ctl is an operator CLI for a running parsec node's
// ops REST surface, following the teacher's cmd/cli/main.go shape: a
// cobra root command with one subcommand per operation, each building
// its own short-lived client.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ruvnet/parsec/internal/api"
)

var (
	baseURL string
	token   string
)

var rootCmd = &cobra.Command{
	Use:   "parsec-ctl",
	Short: "Operator CLI for a parsec consensus node",
}

func client() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

func request(method, path string, body interface{}) (api.Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return api.Response{}, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+path, reader)
	if err != nil {
		return api.Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client().Do(req)
	if err != nil {
		return api.Response{}, err
	}
	defer resp.Body.Close()

	var out api.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return api.Response{}, err
	}
	return out, nil
}

func printResponse(r api.Response) {
	b, _ := json.MarshalIndent(r, "", "  ")
	fmt.Println(string(b))
	if !r.Success {
		os.Exit(1)
	}
}

var loginCmd = &cobra.Command{
	Use:   "login [operator-id] [password]",
	Short: "Exchange operator credentials for a bearer token",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := request(http.MethodPost, "/api/v1/auth/login", api.LoginRequest{
			OperatorID: args[0],
			Password:   args[1],
		})
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		printResponse(resp)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the node's consensus-core status",
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := request(http.MethodGet, "/api/v1/status", nil)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		printResponse(resp)
	},
}

var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "List known section members",
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := request(http.MethodGet, "/api/v1/peers", nil)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		printResponse(resp)
	},
}

var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "Drain and print newly-decided blocks",
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := request(http.MethodGet, "/api/v1/blocks", nil)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		printResponse(resp)
	},
}

var voteAddCmd = &cobra.Command{
	Use:   "vote-add [peer-id] [base64-public-key]",
	Short: "Vote to admit a new peer to the section",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := request(http.MethodPost, "/api/v1/votes/add", api.VoteAddRequest{
			PeerID:    args[0],
			PublicKey: args[1],
		})
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		printResponse(resp)
	},
}

var voteRemoveCmd = &cobra.Command{
	Use:   "vote-remove [base64-public-key]",
	Short: "Vote to strip a peer's voting rights",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := request(http.MethodPost, "/api/v1/votes/remove", api.VoteRemoveRequest{
			PeerID: args[0],
		})
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		printResponse(resp)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "base URL of the node's ops surface")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "operator bearer token")
	rootCmd.AddCommand(loginCmd, statusCmd, peersCmd, blocksCmd, voteAddCmd, voteRemoveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
