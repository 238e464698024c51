package jsengine

// Rewriter returns a criteria rewrite for a locator strategy. template is
// plain text with ${...} expressions; the criteria the user wrote is bound
// to the variable "criteria" while they run.
//
//	//android.widget.Button[@text=${xpathLiteral(criteria)}]
func (e *Engine) Rewriter(template string) func(criteria string) (string, error) {
	return func(criteria string) (string, error) {
		e.SetVariable("criteria", criteria)
		return e.ExpandVariables(template)
	}
}
