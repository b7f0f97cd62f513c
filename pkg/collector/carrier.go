package collector

import (
	"bufio"
	"context"
	"path"
	"strings"

	"netreport/pkg/model"
)

// CarrierProvider reads cellular subscriptions from ModemManager (`mmcli`).
type CarrierProvider struct {
	Run Runner
}

func (c *CarrierProvider) Name() string { return "cellular" }

func (c *CarrierProvider) Fields() []Field { return []Field{FieldCarriers} }

func (c *CarrierProvider) Lookup(ctx context.Context, f Field) (any, error) {
	if f != FieldCarriers {
		return nil, ErrUnavailable
	}
	run := c.Run
	if run == nil {
		run = ExecRunner
	}
	out, err := run(ctx, "mmcli", "-L", "--output-keyvalue")
	if err != nil {
		// no ModemManager or no permission to talk to it
		return nil, ErrUnavailable
	}
	carriers := map[string]model.CarrierInfo{}
	for k, modem := range parseKeyValue(string(out)) {
		if !strings.HasPrefix(k, "modem-list.value") || modem == "" {
			continue
		}
		idx := path.Base(modem)
		detail, err := run(ctx, "mmcli", "-m", idx, "--output-keyvalue")
		if err != nil {
			continue
		}
		carriers["modem"+idx] = carrierFromKeyValue(parseKeyValue(string(detail)))
	}
	return carriers, nil
}

func carrierFromKeyValue(kv map[string]string) model.CarrierInfo {
	ci := model.CarrierInfo{CarrierName: kv["modem.3gpp.operator-name"]}
	code := kv["modem.3gpp.operator-code"]
	if len(code) >= 5 {
		ci.MobileCountryCode = code[:3]
		ci.MobileNetworkCode = code[3:]
	}
	ci.ISOCountryCode = mccCountry[ci.MobileCountryCode]
	return ci
}

// parseKeyValue parses mmcli --output-keyvalue lines ("key : value").
// Unset values ("--") are dropped.
func parseKeyValue(out string) map[string]string {
	kv := make(map[string]string)
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		k, v, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" || v == "--" {
			continue
		}
		kv[k] = v
	}
	return kv
}

// mccCountry maps a few common mobile country codes to ISO 3166 codes.
var mccCountry = map[string]string{
	"202": "gr", "204": "nl", "208": "fr", "214": "es", "222": "it",
	"226": "ro", "228": "ch", "232": "at", "234": "gb", "235": "gb",
	"238": "dk", "240": "se", "242": "no", "244": "fi", "260": "pl",
	"262": "de", "268": "pt", "286": "tr", "302": "ca", "310": "us",
	"311": "us", "334": "mx", "404": "in", "405": "in", "440": "jp",
	"450": "kr", "460": "cn", "505": "au", "530": "nz", "724": "br",
}
