// Package main provides a CLI that drives a local XK or XX handshake
// between two in-process identities and exchanges one record over the
// resulting cipher pair, useful for demonstrating and smoke-testing the
// core transport without a network.
package main

import (
	"crypto/rand"
	"fmt"
	"io"
	"os"

	"github.com/coinstash/vru-mesh/internal/cipher"
	"github.com/coinstash/vru-mesh/internal/config"
	"github.com/coinstash/vru-mesh/internal/curve"
	"github.com/coinstash/vru-mesh/internal/datagram"
	"github.com/coinstash/vru-mesh/internal/handshake"
	"github.com/coinstash/vru-mesh/internal/identity"
	"github.com/coinstash/vru-mesh/internal/kem"
	"github.com/coinstash/vru-mesh/internal/logging"
	"github.com/coinstash/vru-mesh/internal/session"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "vru-handshake",
		Short:   "Drive a local XK or XX handshake and exchange one record",
		Version: Version,
	}

	rootCmd.AddCommand(demoCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func demoCmd() *cobra.Command {
	var configPath string
	var pattern string
	var message string

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a self-contained handshake and record exchange",
		Long: `demo generates two fresh identities, runs the chosen handshake
pattern between them over a pair of connected pipes, then seals and opens
one Arbitrary datagram message across the resulting cipher pair.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			suite := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				suite = loaded
			}

			logger := logging.NewLogger(suite.LogLevel, suite.LogFormat)

			c, err := curveFromName(suite.Curve)
			if err != nil {
				return err
			}
			rotor, err := rotorFromName(suite.Rotor)
			if err != nil {
				return err
			}

			switch pattern {
			case "xk":
				return runXK(logger, c, rotor, suite.RotorRotateInterval(), message)
			case "xx":
				return runXX(logger, c, rotor, suite.RotorRotateInterval(), message)
			default:
				return fmt.Errorf("unknown pattern %q (want xk or xx)", pattern)
			}
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a suite configuration file (defaults applied if omitted)")
	cmd.Flags().StringVarP(&pattern, "pattern", "p", "xk", "handshake pattern: xk or xx")
	cmd.Flags().StringVarP(&message, "message", "m", "hello from vru-handshake", "message body to seal and open after the handshake")

	return cmd
}

func curveFromName(name string) (curve.Curve, error) {
	switch name {
	case "curve25519":
		return curve.Curve25519, nil
	case "secp256k1":
		return curve.Secp256k1, nil
	default:
		return nil, fmt.Errorf("unknown curve %q", name)
	}
}

func rotorFromName(name string) (cipher.Rotor, error) {
	switch name {
	case "", "none":
		return cipher.NoRotor{}, nil
	case "hkdf":
		return cipher.HKDFRotor{}, nil
	default:
		return nil, fmt.Errorf("unknown rotor %q", name)
	}
}

func randomSeed() ([identity.SeedLen]byte, error) {
	var seed [identity.SeedLen]byte
	_, err := io.ReadFull(rand.Reader, seed[:])
	return seed, err
}

// randomKEMSeed draws a fresh 32-byte seed for one KEM encapsulation call.
// Every Encapsulate needs its own seed, independent of the 96-byte
// handshake seed randomSeed draws for ephemeral keygen.
func randomKEMSeed() ([kem.EncapsulationSeedLen]byte, error) {
	var seed [kem.EncapsulationSeedLen]byte
	_, err := io.ReadFull(rand.Reader, seed[:])
	return seed, err
}

// runXK generates an initiator and responder identity, runs the XK
// pattern (responder's static key known in advance) as a session graph
// over a pair of pipes, and exchanges one record over the result.
func runXK(logger interface {
	Info(msg string, args ...any)
}, c curve.Curve, rotor cipher.Rotor, rotateInterval uint64, message string) error {
	initPub, initSec, err := identity.GenerateRandom(c)
	if err != nil {
		return fmt.Errorf("generate initiator identity: %w", err)
	}
	respPub, respSec, err := identity.GenerateRandom(c)
	if err != nil {
		return fmt.Errorf("generate responder identity: %w", err)
	}

	initEphSeed, err := randomSeed()
	if err != nil {
		return err
	}
	respEphSeed, err := randomSeed()
	if err != nil {
		return err
	}

	initKEMSeedM2, err := randomKEMSeed()
	if err != nil {
		return err
	}
	initKEMSeedM4, err := randomKEMSeed()
	if err != nil {
		return err
	}
	respKEMSeedM1, err := randomKEMSeed()
	if err != nil {
		return err
	}
	respKEMSeedM3, err := randomKEMSeed()
	if err != nil {
		return err
	}

	cfg := handshake.Config{Curve: c}

	initToResp, respFromInit := io.Pipe()
	respToInit, initFromResp := io.Pipe()

	var initCipher, respCipher handshake.Cipher
	initSession := session.NewXKInitiatorSession(cfg, initPub, initSec, respPub, respPub.Fingerprint(), initEphSeed, initKEMSeedM2, initKEMSeedM4, rotor, rotateInterval, func(hc handshake.Cipher) { initCipher = hc })
	respSession := session.NewXKResponderSession(cfg, respPub, respSec, respEphSeed, respKEMSeedM1, respKEMSeedM3, rotor, rotateInterval, func(hc handshake.Cipher) { respCipher = hc })

	initChannel := session.NewChannel(initFromResp, initToResp)
	respChannel := session.NewChannel(respFromInit, respToInit)

	errs := make(chan error, 2)
	go func() { errs <- initChannel.Execute(initSession) }()
	go func() { errs <- respChannel.Execute(respSession) }()
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			return fmt.Errorf("xk handshake: %w", err)
		}
	}

	logger.Info("xk handshake complete",
		logging.KeyPattern, "xk",
		logging.KeyIdentity, respPub.Fingerprint().String(),
	)

	return exchangeRecord(initCipher, respCipher, message)
}

// runXX generates two identities with no advance knowledge of each
// other's static key and runs the XX pattern, which carries both static
// keys inside the handshake itself.
func runXX(logger interface {
	Info(msg string, args ...any)
}, c curve.Curve, rotor cipher.Rotor, rotateInterval uint64, message string) error {
	initPub, initSec, err := identity.GenerateRandom(c)
	if err != nil {
		return fmt.Errorf("generate initiator identity: %w", err)
	}
	respPub, respSec, err := identity.GenerateRandom(c)
	if err != nil {
		return fmt.Errorf("generate responder identity: %w", err)
	}

	initEphSeed, err := randomSeed()
	if err != nil {
		return err
	}
	respEphSeed, err := randomSeed()
	if err != nil {
		return err
	}

	respKEMSeedM2, err := randomKEMSeed()
	if err != nil {
		return err
	}
	initKEMSeedM3Q, err := randomKEMSeed()
	if err != nil {
		return err
	}
	initKEMSeedM3S, err := randomKEMSeed()
	if err != nil {
		return err
	}
	respKEMSeedM4, err := randomKEMSeed()
	if err != nil {
		return err
	}

	cfg := handshake.Config{Curve: c}

	initiator := handshake.NewXXInitiator(cfg, initPub, initSec, identity.Identity{})
	responder := handshake.NewXXResponder(cfg, respPub, respSec, identity.Identity{})

	m1, sentM1, err := initiator.Message1(initEphSeed)
	if err != nil {
		return fmt.Errorf("xx message1: %w", err)
	}
	recvM1, err := responder.ConsumeMessage1(m1)
	if err != nil {
		return fmt.Errorf("xx consume message1: %w", err)
	}
	m2, sentM2, err := recvM1.Message2(respEphSeed, nil, respKEMSeedM2)
	if err != nil {
		return fmt.Errorf("xx message2: %w", err)
	}
	recvM2, err := sentM1.ConsumeMessage2(m2)
	if err != nil {
		return fmt.Errorf("xx consume message2: %w", err)
	}
	m3, sentM3, err := recvM2.Message3(nil, nil, initKEMSeedM3Q, initKEMSeedM3S)
	if err != nil {
		return fmt.Errorf("xx message3: %w", err)
	}
	_, _, recvM3, err := sentM2.ConsumeMessage3(m3)
	if err != nil {
		return fmt.Errorf("xx consume message3: %w", err)
	}
	m4, respCipher, err := recvM3.Message4(nil, rotor, rotateInterval, respKEMSeedM4)
	if err != nil {
		return fmt.Errorf("xx message4: %w", err)
	}
	result, err := sentM3.ConsumeMessage4(m4, rotor, rotateInterval)
	if err != nil {
		return fmt.Errorf("xx consume message4: %w", err)
	}

	logger.Info("xx handshake complete",
		logging.KeyPattern, "xx",
		logging.KeyIdentity, respPub.Fingerprint().String(),
	)

	return exchangeRecord(result.Cipher, respCipher, message)
}

func exchangeRecord(sendSide, receiveSide handshake.Cipher, message string) error {
	packets, err := datagram.Seal(sendSide.Send, handshake.RecordAssociatedData, datagram.Message{
		Tag:  datagram.TagArbitrary,
		Body: []byte(message),
	})
	if err != nil {
		return fmt.Errorf("seal message: %w", err)
	}

	opened, err := datagram.Open(receiveSide.Receive, handshake.RecordAssociatedData, packets)
	if err != nil {
		return fmt.Errorf("open message: %w", err)
	}

	fmt.Printf("handshake hash: %x\n", sendSide.HandshakeHash)
	fmt.Printf("packets sealed: %d\n", len(packets))
	fmt.Printf("message: %s\n", string(opened.Body))
	return nil
}
