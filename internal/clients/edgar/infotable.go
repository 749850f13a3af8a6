package edgar

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/holdiq/holdiq/internal/modules/holdings"
)

// 13F filings arrive as .txt envelopes with the information table
// embedded as an XML island, optionally namespace-prefixed.
var infoTableRe = regexp.MustCompile(`(?is)<(?:\w+:)?informationTable\b.*?</(?:\w+:)?informationTable>`)

// informationTable mirrors the 13F information table XML. Unqualified
// names match element local names regardless of namespace.
type informationTable struct {
	XMLName xml.Name         `xml:"informationTable"`
	Entries []infoTableEntry `xml:"infoTable"`
}

type infoTableEntry struct {
	NameOfIssuer         string `xml:"nameOfIssuer"`
	TitleOfClass         string `xml:"titleOfClass"`
	CUSIP                string `xml:"cusip"`
	Value                string `xml:"value"`
	ShrsOrPrnAmt         shrs   `xml:"shrsOrPrnAmt"`
	PutCall              string `xml:"putCall"`
	InvestmentDiscretion string `xml:"investmentDiscretion"`
	VotingAuthority      voting `xml:"votingAuthority"`
}

type shrs struct {
	SshPrnamt     string `xml:"sshPrnamt"`
	SshPrnamtType string `xml:"sshPrnamtType"`
}

type voting struct {
	Sole   string `xml:"Sole"`
	Shared string `xml:"Shared"`
	None   string `xml:"None"`
}

// ExtractInformationTable returns the <informationTable> block from a
// raw filing, or the input unchanged when no block is found (the filing
// may already be the bare XML document).
func ExtractInformationTable(blob []byte) []byte {
	if m := infoTableRe.Find(blob); m != nil {
		return m
	}
	return blob
}

// ParseInformationTable parses a 13F information table into positions.
// Reported values are in $thousands and are converted to dollars.
// Malformed numeric fields coerce to zero rather than failing the parse.
func ParseInformationTable(blob []byte) ([]holdings.Position, error) {
	table := ExtractInformationTable(blob)

	var parsed informationTable
	if err := xml.Unmarshal(table, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse information table: %w", err)
	}

	positions := make([]holdings.Position, 0, len(parsed.Entries))
	for _, entry := range parsed.Entries {
		positions = append(positions, holdings.Position{
			CUSIP:        strings.TrimSpace(entry.CUSIP),
			Issuer:       strings.TrimSpace(entry.NameOfIssuer),
			Class:        strings.TrimSpace(entry.TitleOfClass),
			Shares:       parseFloat(entry.ShrsOrPrnAmt.SshPrnamt),
			ValueUSD:     parseFloat(entry.Value) * 1000.0,
			PutCall:      strings.TrimSpace(entry.PutCall),
			Discretion:   strings.TrimSpace(entry.InvestmentDiscretion),
			VotingSole:   parseInt(entry.VotingAuthority.Sole),
			VotingShared: parseInt(entry.VotingAuthority.Shared),
			VotingNone:   parseInt(entry.VotingAuthority.None),
		})
	}

	return positions, nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
