package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rchat-io/rchat-node/node"
)

var peerCmd = &cobra.Command{
	Use:   "peer",
	Short: "Inspect and manage trusted peers",
}

var peerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every trusted peer",
	RunE:  runPeerList,
}

var peerDeleteCmd = &cobra.Command{
	Use:   "delete <peer-id>",
	Short: "Remove a peer from the trust list",
	Args:  cobra.ExactArgs(1),
	RunE:  runPeerDelete,
}

var peerPinCmd = &cobra.Command{
	Use:   "pin <peer-id>",
	Short: "Pin a trusted peer",
	Args:  cobra.ExactArgs(1),
	RunE:  runPeerPin(true),
}

var peerUnpinCmd = &cobra.Command{
	Use:   "unpin <peer-id>",
	Short: "Unpin a trusted peer",
	Args:  cobra.ExactArgs(1),
	RunE:  runPeerPin(false),
}

func init() {
	rootCmd.AddCommand(peerCmd)
	peerCmd.AddCommand(peerListCmd, peerDeleteCmd, peerPinCmd, peerUnpinCmd)
}

func runPeerList(cmd *cobra.Command, args []string) error {
	return withNode(func(n *node.Node) error {
		peers, apiErr := n.Dispatcher().GetTrustedPeers(context.Background())
		if apiErr != nil {
			return apiErr
		}
		pinned, apiErr := n.Dispatcher().GetPinnedPeers(context.Background())
		if apiErr != nil {
			return apiErr
		}
		pinnedSet := make(map[string]bool, len(pinned))
		for _, p := range pinned {
			pinnedSet[p] = true
		}
		for _, p := range peers {
			mark := ""
			if pinnedSet[p] {
				mark = " (pinned)"
			}
			fmt.Printf("%s%s\n", p, mark)
		}
		return nil
	})
}

func runPeerDelete(cmd *cobra.Command, args []string) error {
	peerID := args[0]
	return withNode(func(n *node.Node) error {
		if apiErr := n.Dispatcher().DeletePeer(context.Background(), peerID); apiErr != nil {
			return apiErr
		}
		fmt.Printf("deleted %s\n", peerID)
		return nil
	})
}

func runPeerPin(pinned bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		peerID := args[0]
		return withNode(func(n *node.Node) error {
			if apiErr := n.Dispatcher().SetPeerPinned(context.Background(), peerID, pinned); apiErr != nil {
				return apiErr
			}
			fmt.Printf("%s %s\n", map[bool]string{true: "pinned", false: "unpinned"}[pinned], peerID)
			return nil
		})
	}
}
