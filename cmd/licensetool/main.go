// licensetool 离线运维工具：生成密钥对、查看令牌内容、用公钥校验令牌
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"license-token-service/internal/keys"
	"license-token-service/internal/service"
	"license-token-service/internal/token"
)

const usage = `usage: licensetool <command> [flags]

commands:
  keygen   generate an RSA key pair (priv.pem, pub.pem)
  inspect  decode a token without checking its signature
  verify   check a token signature against a public key
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "keygen":
		err = keygen(os.Args[2:], os.Stdout)
	case "inspect":
		err = inspect(os.Args[2:], os.Stdout)
	case "verify":
		err = verify(os.Args[2:], os.Stdout)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func keygen(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	dir := fs.String("out", ".", "output directory")
	bits := fs.Int("bits", 3072, "RSA key size in bits")
	if err := fs.Parse(args); err != nil {
		return err
	}

	key, err := keys.Generate(*bits)
	if err != nil {
		return err
	}
	privPath, pubPath, err := keys.WritePair(*dir, key)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "private key: %s\npublic key:  %s\n", privPath, pubPath)
	return nil
}

// inspect 输出的内容未经校验，不可作为授权依据
func inspect(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	tok := fs.String("token", "", "license token")
	if err := fs.Parse(args); err != nil {
		return err
	}

	alg, typ, body, err := token.Inspect(*tok)
	if err != nil {
		return err
	}
	payload, err := token.DecodePayload(body)
	if err != nil {
		return err
	}
	return writeJSON(out, map[string]any{
		"untrusted":   true,
		"alg":         alg,
		"typ":         typ,
		"fingerprint": token.Fingerprint(*tok),
		"payload":     payload,
	})
}

func verify(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	tok := fs.String("token", "", "license token")
	pub := fs.String("pub", "pub.pem", "public key file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	signer := keys.NewSigner(keys.NewProvider(keys.Source{}, keys.Source{Path: *pub}))
	payload, fp, err := service.NewEngine(nil, signer, nil).Parse(*tok)
	if err != nil {
		return err
	}
	return writeJSON(out, map[string]any{
		"signature":   "valid",
		"fingerprint": fp,
		"payload":     payload,
	})
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
