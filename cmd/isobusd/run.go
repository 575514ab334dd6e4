package main

import (
	"fmt"
	"log"
	"time"

	"github.com/GwnDaan/ISO11783-CAN-Stack/controlfunction"
	"github.com/GwnDaan/ISO11783-CAN-Stack/frame"
	"github.com/GwnDaan/ISO11783-CAN-Stack/hardware"
	"github.com/GwnDaan/ISO11783-CAN-Stack/name"
	"github.com/GwnDaan/ISO11783-CAN-Stack/network"
	"github.com/GwnDaan/ISO11783-CAN-Stack/storage"
	"github.com/GwnDaan/ISO11783-CAN-Stack/transport"
	"github.com/spf13/cobra"
)

var (
	ifaceName        string
	bitrate          uint32
	preferredAddress uint8
	identityNumber   uint32
	function         uint8
	storageDir       string
	virtual          bool
	watchFunction    int
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&ifaceName, "iface", "i", "can0", "SocketCAN network interface")
	runCmd.Flags().Uint32Var(&bitrate, "bitrate", 250_000, "CAN bus bitrate in bits per second")
	runCmd.Flags().Uint8VarP(&preferredAddress, "address", "a", 0x80, "preferred source address")
	runCmd.Flags().Uint32Var(&identityNumber, "identity", 1, "NAME identity number field")
	runCmd.Flags().Uint8Var(&function, "function", 0, "NAME function field")
	runCmd.Flags().StringVar(&storageDir, "storage-dir", "./isobusd-storage", "directory for persisted entries")
	runCmd.Flags().BoolVar(&virtual, "virtual", false, "use an in-process virtual bus instead of SocketCAN")
	runCmd.Flags().IntVar(&watchFunction, "watch-function", -1, "add a partner control function matching this NAME function field")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Claim an address and trace bus activity",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var t transport.FrameTransport
		if virtual {
			t = transport.NewVirtualBus().Connect()
		} else {
			t = transport.NewSocketCAN(ifaceName, bitrate)
		}

		hw := hardware.NewInterface()
		mgr := network.NewManager(0, hw)
		if err := hw.Assign(0, t, mgr); err != nil {
			return fmt.Errorf("assign transport: %w", err)
		}

		store, err := storage.NewFileBackend(storageDir, "")
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		storeIface := storage.NewInterface(store)
		if err := storeIface.Start(); err != nil {
			return fmt.Errorf("start storage: %w", err)
		}
		defer storeIface.Stop()

		hw.OnFrameReceived(func(f frame.Frame) {
			log.Println(f.ColorString())
		})
		hw.OnFrameTransmitted(func(f frame.Frame) {
			log.Println(f.ColorString())
		})

		n := name.New(name.Fields{
			IdentityNumber:          identityNumber,
			Function:                function,
			ArbitraryAddressCapable: true,
		})

		if err := hw.Start(); err != nil {
			return fmt.Errorf("start hardware pump: %w", err)
		}
		defer hw.Stop()

		cf := mgr.AddInternal(n, preferredAddress)
		if err := storeIface.RequestWrite(storage.EntryPreferredAddress, []byte{preferredAddress}); err != nil {
			log.Printf("persist preferred address: %v", err)
		}

		if watchFunction >= 0 {
			partner := mgr.AddPartner(name.FilterSet{{Parameter: name.ParameterFunction, Value: uint32(watchFunction)}})
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case <-time.After(time.Second):
						if partner.Bound() {
							log.Printf("partner bound at address %#x", partner.Address())
							return
						}
					}
				}
			}()
		}

		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				log.Printf("state=%s address=%#x busload=%.1f%%", cf.State(), cf.Address(), mgr.BusloadPercentage())
				if cf.State() == controlfunction.AddressClaimed {
					mgr.SendCANMessage(frame.PGNRequest, []byte{0xEE, 0x00, 0x00}, cf.Address(), frame.AddressGlobal, 6, nil)
				}
			}
		}
	},
}
