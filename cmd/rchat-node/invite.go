package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rchat-io/rchat-node/node"
)

const networkReadyTimeout = 30 * time.Second

var inviteCmd = &cobra.Command{
	Use:   "invite",
	Short: "Create and redeem peer invitations",
}

var invitePasswordCmd = &cobra.Command{
	Use:   "generate-password",
	Short: "Generate a one-time password for a new invitation",
	RunE:  runInviteGeneratePassword,
}

var inviteCreateCmd = &cobra.Command{
	Use:   "create <handle>",
	Short: "Publish a redeemable invitation for a handle",
	Args:  cobra.ExactArgs(1),
	RunE:  runInviteCreate,
}

var inviteRedeemCmd = &cobra.Command{
	Use:   "redeem <handle>",
	Short: "Redeem another node's invitation and establish a session with it",
	Args:  cobra.ExactArgs(1),
	RunE:  runInviteRedeem,
}

func init() {
	rootCmd.AddCommand(inviteCmd)
	inviteCmd.AddCommand(invitePasswordCmd, inviteCreateCmd, inviteRedeemCmd)

	for _, c := range []*cobra.Command{inviteCreateCmd, inviteRedeemCmd} {
		c.Flags().StringVar(&vaultPassword, "vault-password", "", "vault password (prompted on stdin if omitted)")
		c.Flags().StringVar(&inviteOTP, "invite-password", "", "the invitation's one-time password")
		c.MarkFlagRequired("invite-password")
	}
}

var inviteOTP string

func runInviteGeneratePassword(cmd *cobra.Command, args []string) error {
	return withNode(func(n *node.Node) error {
		password, apiErr := n.Dispatcher().GenerateInvitePassword()
		if apiErr != nil {
			return apiErr
		}
		fmt.Println(password)
		return nil
	})
}

// withNetworkedNode unlocks the vault (an already set-up one) and waits for
// the invite engine to be wired before running fn, for commands that need a
// live transport and pubsub stack rather than just the local store.
func withNetworkedNode(fn func(n *node.Node) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	n, err := node.NewNode(cfg, log)
	if err != nil {
		return err
	}
	defer n.Stop()

	password, err := resolvePassword()
	if err != nil {
		return err
	}
	if err := n.UnlockAndAwaitNetwork(context.Background(), password, networkReadyTimeout); err != nil {
		return err
	}
	return fn(n)
}

func runInviteCreate(cmd *cobra.Command, args []string) error {
	handle := args[0]
	return withNetworkedNode(func(n *node.Node) error {
		if apiErr := n.Dispatcher().CreateInvite(context.Background(), handle, inviteOTP); apiErr != nil {
			return apiErr
		}
		fmt.Printf("invitation published for %s\n", handle)
		return nil
	})
}

func runInviteRedeem(cmd *cobra.Command, args []string) error {
	handle := args[0]
	return withNetworkedNode(func(n *node.Node) error {
		peerID, apiErr := n.Dispatcher().RedeemAndConnect(context.Background(), handle, inviteOTP)
		if apiErr != nil {
			return apiErr
		}
		fmt.Printf("connected to %s (peer %s)\n", handle, peerID)
		return nil
	})
}
