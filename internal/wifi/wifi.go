// Package wifi renders the network configuration the board uses to join
// the WiFi network.
package wifi

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
)

const (
	maxSSIDLen       = 32
	minPassphraseLen = 8
	maxPassphraseLen = 63
	pskLen           = 32
	pskIterations    = 4096
)

// Network is a WPA2-PSK network.
type Network struct {
	SSID       string
	Passphrase string
}

// Validate checks SSID and passphrase lengths as defined by IEEE 802.11i.
// A 64 character passphrase is accepted as a raw hex PSK.
func (n Network) Validate() error {
	if n.SSID == "" {
		return errors.New("ssid is required")
	}
	if len(n.SSID) > maxSSIDLen {
		return errors.Errorf("ssid is %d bytes, maximum is %d", len(n.SSID), maxSSIDLen)
	}
	if n.Passphrase == "" {
		return errors.New("pass is required")
	}
	if n.rawPSK() {
		return nil
	}
	if len(n.Passphrase) < minPassphraseLen || len(n.Passphrase) > maxPassphraseLen {
		return errors.Errorf("pass must be %d to %d characters", minPassphraseLen, maxPassphraseLen)
	}
	for _, c := range []byte(n.Passphrase) {
		if c < 32 || c > 126 {
			return errors.New("pass must only contain printable ASCII characters")
		}
	}
	return nil
}

func (n Network) rawPSK() bool {
	if len(n.Passphrase) != 2*pskLen {
		return false
	}
	_, err := hex.DecodeString(n.Passphrase)
	return err == nil
}

// PSK returns the hex encoded pre-shared key derived from passphrase and SSID.
func (n Network) PSK() string {
	if n.rawPSK() {
		return n.Passphrase
	}
	key := pbkdf2.Key([]byte(n.Passphrase), []byte(n.SSID), pskIterations, pskLen, sha1.New)
	return hex.EncodeToString(key)
}

// WPASupplicant renders a wpa_supplicant.conf for this network. The plain
// passphrase is not written.
func (n Network) WPASupplicant(country string) ([]byte, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "ctrl_interface=DIR=/var/run/wpa_supplicant GROUP=netdev")
	fmt.Fprintln(&buf, "update_config=1")
	if country != "" {
		fmt.Fprintf(&buf, "country=%s\n", country)
	}
	fmt.Fprintln(&buf)
	fmt.Fprintln(&buf, "network={")
	fmt.Fprintf(&buf, "\tssid=%s\n", n.ssidValue())
	fmt.Fprintf(&buf, "\tpsk=%s\n", n.PSK())
	fmt.Fprintln(&buf, "\tkey_mgmt=WPA-PSK")
	fmt.Fprintln(&buf, "}")
	return buf.Bytes(), nil
}

// ssidValue returns the SSID quoted, or hex encoded when it contains bytes
// wpa_supplicant cannot read inside quotes.
func (n Network) ssidValue() string {
	for _, c := range []byte(n.SSID) {
		if c < 32 || c > 126 || c == '"' || c == '\\' {
			return hex.EncodeToString([]byte(n.SSID))
		}
	}
	return `"` + n.SSID + `"`
}

// WriteFile writes the supplicant config to path, readable by the owner only.
func (n Network) WriteFile(path, country string) error {
	data, err := n.WPASupplicant(country)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".wpa_supplicant-*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing supplicant config")
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "replacing supplicant config")
}
