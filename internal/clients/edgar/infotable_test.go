package edgar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleInfoTable = `<informationTable xmlns="http://www.sec.gov/edgar/document/thirteenf/informationtable">
  <infoTable>
    <nameOfIssuer>APPLE INC</nameOfIssuer>
    <titleOfClass>COM</titleOfClass>
    <cusip>037833100</cusip>
    <value>915560</value>
    <shrsOrPrnAmt>
      <sshPrnamt>400000000</sshPrnamt>
      <sshPrnamtType>SH</sshPrnamtType>
    </shrsOrPrnAmt>
    <investmentDiscretion>DFND</investmentDiscretion>
    <votingAuthority>
      <Sole>400000000</Sole>
      <Shared>0</Shared>
      <None>0</None>
    </votingAuthority>
  </infoTable>
  <infoTable>
    <nameOfIssuer>BANK AMER CORP</nameOfIssuer>
    <titleOfClass>COM</titleOfClass>
    <cusip>060505104</cusip>
    <value>31735</value>
    <shrsOrPrnAmt>
      <sshPrnamt>1032852006</sshPrnamt>
      <sshPrnamtType>SH</sshPrnamtType>
    </shrsOrPrnAmt>
    <putCall>Put</putCall>
    <investmentDiscretion>DFND</investmentDiscretion>
    <votingAuthority>
      <Sole>1032852006</Sole>
      <Shared>0</Shared>
      <None>0</None>
    </votingAuthority>
  </infoTable>
</informationTable>`

func TestParseInformationTable(t *testing.T) {
	positions, err := ParseInformationTable([]byte(sampleInfoTable))
	require.NoError(t, err)
	require.Len(t, positions, 2)

	apple := positions[0]
	assert.Equal(t, "037833100", apple.CUSIP)
	assert.Equal(t, "APPLE INC", apple.Issuer)
	assert.Equal(t, "COM", apple.Class)
	assert.Equal(t, 400000000.0, apple.Shares)
	// Reported in $thousands
	assert.Equal(t, 915560000.0, apple.ValueUSD)
	assert.Equal(t, "DFND", apple.Discretion)
	assert.Equal(t, int64(400000000), apple.VotingSole)
	assert.Empty(t, apple.PutCall)

	bac := positions[1]
	assert.Equal(t, "060505104", bac.CUSIP)
	assert.Equal(t, "Put", bac.PutCall)
}

func TestParseInformationTableNamespacePrefix(t *testing.T) {
	// Some filers emit a prefixed table inside the .txt envelope
	envelope := `<SEC-DOCUMENT>
header noise
<ns1:informationTable xmlns:ns1="http://www.sec.gov/edgar/document/thirteenf/informationtable">
  <ns1:infoTable>
    <ns1:nameOfIssuer>COCA COLA CO</ns1:nameOfIssuer>
    <ns1:titleOfClass>COM</ns1:titleOfClass>
    <ns1:cusip>191216100</ns1:cusip>
    <ns1:value>24472</ns1:value>
    <ns1:shrsOrPrnAmt>
      <ns1:sshPrnamt>400000</ns1:sshPrnamt>
      <ns1:sshPrnamtType>SH</ns1:sshPrnamtType>
    </ns1:shrsOrPrnAmt>
    <ns1:investmentDiscretion>SOLE</ns1:investmentDiscretion>
    <ns1:votingAuthority>
      <ns1:Sole>400000</ns1:Sole>
      <ns1:Shared>0</ns1:Shared>
      <ns1:None>0</ns1:None>
    </ns1:votingAuthority>
  </ns1:infoTable>
</ns1:informationTable>
trailer noise
</SEC-DOCUMENT>`

	positions, err := ParseInformationTable([]byte(envelope))
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "191216100", positions[0].CUSIP)
	assert.Equal(t, 24472000.0, positions[0].ValueUSD)
}

func TestParseInformationTableMalformedNumbersCoerceToZero(t *testing.T) {
	table := `<informationTable>
  <infoTable>
    <nameOfIssuer>BROKEN CO</nameOfIssuer>
    <cusip>000000000</cusip>
    <value>N/A</value>
    <shrsOrPrnAmt><sshPrnamt></sshPrnamt></shrsOrPrnAmt>
    <votingAuthority><Sole>x</Sole></votingAuthority>
  </infoTable>
</informationTable>`

	positions, err := ParseInformationTable([]byte(table))
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Zero(t, positions[0].ValueUSD)
	assert.Zero(t, positions[0].Shares)
	assert.Zero(t, positions[0].VotingSole)
}

func TestParseInformationTableInvalidXML(t *testing.T) {
	_, err := ParseInformationTable([]byte("not xml at all"))
	assert.Error(t, err)
}

func TestExtractInformationTablePassThrough(t *testing.T) {
	bare := []byte(`<informationTable></informationTable>`)
	assert.Equal(t, bare, ExtractInformationTable(bare))

	// No table present: input returned unchanged
	noise := []byte("just some text")
	assert.Equal(t, noise, ExtractInformationTable(noise))
}
