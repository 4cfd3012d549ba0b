package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rchat-io/rchat-node/node"
)

var vaultPassword string

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage the node's password-protected identity vault",
}

var vaultInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new identity vault, generating its identity key",
	RunE:  runVaultInit,
}

var vaultUnlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Unlock an existing vault for the lifetime of this command",
	RunE:  runVaultUnlock,
}

var vaultResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Destroy the vault and every dependent path, irreversibly",
	RunE:  runVaultReset,
}

var vaultStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print whether the vault is set up and unlocked",
	RunE:  runVaultStatus,
}

func init() {
	rootCmd.AddCommand(vaultCmd)
	vaultCmd.AddCommand(vaultInitCmd, vaultUnlockCmd, vaultResetCmd, vaultStatusCmd)

	for _, c := range []*cobra.Command{vaultInitCmd, vaultUnlockCmd} {
		c.Flags().StringVar(&vaultPassword, "password", "", "vault password (prompted on stdin if omitted)")
	}
}

func resolvePassword() (string, error) {
	if vaultPassword != "" {
		return vaultPassword, nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return trimNewline(line), nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func withNode(fn func(n *node.Node) error) error {
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
	return fn(n)
}

func runVaultInit(cmd *cobra.Command, args []string) error {
	password, err := resolvePassword()
	if err != nil {
		return err
	}
	return withNode(func(n *node.Node) error {
		if apiErr := n.Dispatcher().InitVault(password); apiErr != nil {
			return apiErr
		}
		fmt.Println("vault initialized")
		return nil
	})
}

func runVaultUnlock(cmd *cobra.Command, args []string) error {
	password, err := resolvePassword()
	if err != nil {
		return err
	}
	return withNode(func(n *node.Node) error {
		if apiErr := n.Dispatcher().UnlockVault(password); apiErr != nil {
			return apiErr
		}
		fmt.Println("vault unlocked")
		return nil
	})
}

func runVaultReset(cmd *cobra.Command, args []string) error {
	return withNode(func(n *node.Node) error {
		if apiErr := n.Dispatcher().ResetVault(context.Background()); apiErr != nil {
			return apiErr
		}
		fmt.Println("vault reset")
		return nil
	})
}

func runVaultStatus(cmd *cobra.Command, args []string) error {
	return withNode(func(n *node.Node) error {
		status := n.Dispatcher().CheckAuthStatus()
		fmt.Printf("is_setup=%t is_unlocked=%t is_online=%t\n", status.IsSetUp, status.IsUnlocked, status.IsOnline)
		return nil
	})
}
