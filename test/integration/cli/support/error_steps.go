package support

import "github.com/cucumber/godog"

// theErrorShouldMentionMissingRequiredFlag verifies a required flag error.
func (testCtx *TestContext) theErrorShouldMentionMissingRequiredFlag(flag string) error {
	if err := testCtx.theErrorShouldMention("required flag"); err != nil {
		return err
	}
	return testCtx.theErrorShouldMention(flag)
}

// theErrorShouldMentionAnInvalidQRSize verifies a size ratio range error.
func (testCtx *TestContext) theErrorShouldMentionAnInvalidQRSize() error {
	return testCtx.theErrorShouldMention("size_ratio")
}

// theErrorShouldMentionAnInvalidPosition verifies an anchor parse error.
func (testCtx *TestContext) theErrorShouldMentionAnInvalidPosition() error {
	return testCtx.theErrorShouldMention("invalid position")
}

// theErrorShouldMentionAnUnreadableQRCode verifies a validation failure.
func (testCtx *TestContext) theErrorShouldMentionAnUnreadableQRCode() error {
	return testCtx.theErrorShouldMention("not readable")
}

// troubleshootingTipsShouldBeShown verifies the generate failure hints.
func (testCtx *TestContext) troubleshootingTipsShouldBeShown() error {
	return testCtx.theOutputShouldContain("Troubleshooting:")
}

// RegisterErrorSteps registers error assertion steps.
func (testCtx *TestContext) RegisterErrorSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the error should mention the missing "([^"]*)" flag$`, testCtx.theErrorShouldMentionMissingRequiredFlag)
	sc.Step(`^the error should mention an invalid QR size$`, testCtx.theErrorShouldMentionAnInvalidQRSize)
	sc.Step(`^the error should mention an invalid position$`, testCtx.theErrorShouldMentionAnInvalidPosition)
	sc.Step(`^the error should mention an unreadable QR code$`, testCtx.theErrorShouldMentionAnUnreadableQRCode)
	sc.Step(`^troubleshooting tips should be shown$`, testCtx.troubleshootingTipsShouldBeShown)
}
