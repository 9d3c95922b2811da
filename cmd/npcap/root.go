package main

import (
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// globalOptions 保存所有子命令共享的参数。
type globalOptions struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:   "npcap",
		Short: "Decode capture files and track TCP flows",
		Long: `npcap decodes pcap and pcapng captures into protocol layers
(Ethernet, VLAN, LLC, SLL, NULL, ARP, IPv4, IPv6, ICMP, IGMP, TCP, UDP, DNS)
and follows every TCP connection through its handshake, data and close.

Settings are read from npcap.yaml in the working directory or /etc/npcap,
from NPCAP_* environment variables and from flags, in increasing priority.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "",
		"config file path (default npcap.yaml in . or /etc/npcap)")
	cmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	cmd.AddCommand(newReadCmd(opts))
	return cmd
}
