package catalog

// Default returns the catalog pre-registered with the hospital permission set.
func Default() *Catalog {
	c := New()
	for _, p := range []Permission{
		{Code: "view_patients", Label: "View patient records", Category: "patients", Sensitivity: SensitivityLow},
		{Code: "edit_patients", Label: "Edit patient records", Category: "patients", Sensitivity: SensitivityMedium},
		{Code: "view_appointments", Label: "View appointments", Category: "appointments", Sensitivity: SensitivityLow},
		{Code: "edit_appointments", Label: "Manage appointments", Category: "appointments", Sensitivity: SensitivityLow},
		{Code: "view_billing", Label: "View billing", Category: "billing", Sensitivity: SensitivityMedium},
		{Code: "edit_billing", Label: "Edit billing", Category: "billing", Sensitivity: SensitivityHigh},
		{Code: "view_staff", Label: "View staff directory", Category: "staff", Sensitivity: SensitivityLow},
		{Code: "edit_staff", Label: "Manage staff", Category: "staff", Sensitivity: SensitivityHigh},
		{Code: "prescribe_medication", Label: "Prescribe medication", Category: "clinical", Sensitivity: SensitivityHigh},
		{Code: "perform_surgery", Label: "Perform surgery", Category: "clinical", Sensitivity: SensitivityCritical},
		{Code: "view_analytics", Label: "View analytics reports", Category: "reporting", Sensitivity: SensitivityMedium},
		{Code: "manage_permissions", Label: "Manage permissions and approvals", Category: "administration", Sensitivity: SensitivityCritical},
		{Code: Admin, Label: "Administrator override", Category: "administration", Sensitivity: SensitivityCritical},
	} {
		// Register cannot fail here: codes are unique and non-empty.
		_ = c.Register(p.Code, p.Label, p.Category, p.Sensitivity)
	}
	return c
}
