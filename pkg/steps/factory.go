package steps

const (
	StepPreflight = "preflight"
	StepInstall   = "install-operator"
	StepProvision = "provision-credentials"
	StepDeploy    = "deploy-manifests"
	StepWait      = "wait-for-sync"
	StepVerify    = "verify"
)

// NewPipeline returns the bootstrap steps in their fixed execution order.
func NewPipeline() []Step {
	return []Step{
		NewPreflightStep(),
		NewInstallStep(),
		NewProvisionStep(),
		NewDeployStep(),
		NewWaitStep(),
		NewVerifyStep(),
	}
}
