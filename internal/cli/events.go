package cli

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/nodegraph/internal/domain/catalog"
)

// eventsURL maps the server URL onto the websocket endpoint for prefix
func eventsURL(server, prefix string) (string, error) {
	u, err := url.Parse(strings.TrimRight(server, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path += "/" + prefix + "/events"
	return u.String(), nil
}

func newEventsCommand(flags *rootFlags) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Stream catalog change events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := flags.parseKind()
			if err != nil {
				return err
			}
			target, err := eventsURL(flags.server, kind.Prefix())
			if err != nil {
				return err
			}

			conn, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), target, nil)
			if err != nil {
				return fmt.Errorf("failed to connect to %s: %w", target, err)
			}
			defer conn.Close()

			// unblock the read loop when the command is canceled
			stop := make(chan struct{})
			defer close(stop)
			go func() {
				select {
				case <-cmd.Context().Done():
					conn.Close()
				case <-stop:
				}
			}()

			for seen := 0; count <= 0 || seen < count; seen++ {
				var ev catalog.Event
				if err := conn.ReadJSON(&ev); err != nil {
					if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || cmd.Context().Err() != nil {
						return nil
					}
					return fmt.Errorf("event stream failed: %w", err)
				}
				if flags.json {
					if err := printJSON(cmd.OutOrStdout(), ev); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s v%d %s\n",
					cyan.Sprint(ev.Type), ev.Kind, ev.Version, grey.Sprintf("(%d entries)", ev.Count))
			}
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 0, "Exit after this many events (0 streams until interrupted)")
	return cmd
}
