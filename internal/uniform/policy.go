package uniform

// Policy selects how a declaration is turned into a binding.
type Policy int

// Resolution policies.
const (
	PolicyNone Policy = iota // inert: no value set, sampler left unbound
	PolicySlider
	PolicyCheckbox
	PolicyCombobox
	PolicyButton
	PolicyColor
	PolicyTime
	PolicyInput
	PolicyModel
	PolicyMatrix
	PolicyTexture
	PolicyBuffer
	PolicyBufferSize
	PolicyCustom
	PolicyInvalid
)

var policyNames = [...]string{
	PolicyNone:       "none",
	PolicySlider:     "slider",
	PolicyCheckbox:   "checkbox",
	PolicyCombobox:   "combobox",
	PolicyButton:     "button",
	PolicyColor:      "color",
	PolicyTime:       "time",
	PolicyInput:      "input",
	PolicyModel:      "model",
	PolicyMatrix:     "matrix",
	PolicyTexture:    "texture",
	PolicyBuffer:     "buffer",
	PolicyBufferSize: "buffersize",
	PolicyCustom:     "custom",
	PolicyInvalid:    "invalid",
}

func (p Policy) String() string {
	if p < 0 || int(p) >= len(policyNames) {
		return "unknown"
	}
	return policyNames[p]
}

type policyKey struct {
	class  TypeClass
	widget string
}

// policyTable is the whole (type class, widget) dispatch. Rows missing here
// resolve to PolicyNone.
var policyTable = map[policyKey]Policy{
	{ClassScalar, ""}:             PolicySlider,
	{ClassScalar, "slider"}:       PolicySlider,
	{ClassScalar, "checkbox"}:     PolicyCheckbox,
	{ClassScalar, "combobox"}:     PolicyCombobox,
	{ClassScalar, "button"}:       PolicyButton,
	{ClassScalar, "time"}:         PolicyTime,
	{ClassScalar, "deltatime"}:    PolicyTime,
	{ClassScalar, "frame"}:        PolicyTime,
	{ClassScalar, "midi"}:         PolicyInput,
	{ClassScalar, "gamepad"}:      PolicyInput,
	{ClassScalar, "maxpoints"}:    PolicyModel,
	{ClassScalar, "maxvertices"}:  PolicyModel,
	{ClassScalar, "maxinstances"}: PolicyModel,
	{ClassScalar, "maxpatches"}:   PolicyModel,
	{ClassScalar, "color"}:        PolicyInvalid,

	{ClassVector, ""}:         PolicySlider,
	{ClassVector, "slider"}:   PolicySlider,
	{ClassVector, "checkbox"}: PolicyCheckbox,
	{ClassVector, "color"}:    PolicyColor,
	{ClassVector, "buffer"}:   PolicyBufferSize,
	{ClassVector, "compute"}:  PolicyBufferSize,
	{ClassVector, "mouse"}:    PolicyInput,
	{ClassVector, "camera"}:   PolicyInput,
	{ClassVector, "gizmo"}:    PolicyInput,
	{ClassVector, "gamepad"}:  PolicyInput,
	{ClassVector, "midi"}:     PolicyInput,
	{ClassVector, "vr"}:       PolicyInput,
	{ClassVector, "date"}:     PolicyTime,

	{ClassBool, ""}:         PolicyCheckbox,
	{ClassBool, "checkbox"}: PolicyCheckbox,
	{ClassBool, "button"}:   PolicyButton,
	{ClassBool, "gamepad"}:  PolicyInput,
	{ClassBool, "midi"}:     PolicyInput,

	{ClassMatrix, ""}:       PolicyMatrix,
	{ClassMatrix, "camera"}: PolicyInput,
	{ClassMatrix, "gizmo"}:  PolicyInput,
	{ClassMatrix, "vr"}:     PolicyInput,

	{ClassSampler2D, "picture"}: PolicyTexture,
	{ClassSampler2D, "sound"}:   PolicyTexture,
	{ClassSampler2D, "buffer"}:  PolicyBuffer,
	{ClassSampler2D, "compute"}: PolicyBuffer,

	{ClassSampler3D, "volume"}:  PolicyTexture,
	{ClassSampler3D, "compute"}: PolicyBuffer,

	{ClassSamplerCube, "cubemap"}: PolicyTexture,

	{ClassImage, "buffer"}:  PolicyBuffer,
	{ClassImage, "compute"}: PolicyBuffer,
}

// knownWidgets holds every widget keyword that appears in policyTable.
var knownWidgets = func() map[string]bool {
	m := make(map[string]bool)
	for k := range policyTable {
		if k.widget != "" {
			m[k.widget] = true
		}
	}
	return m
}()

// IsKnownWidget reports whether w is a built-in widget keyword.
func IsKnownWidget(w string) bool {
	return knownWidgets[w]
}

// lookupPolicy resolves the policy for a type class and widget keyword.
// Unknown widgets are slider parameters; known widgets outside the table
// are inert.
func lookupPolicy(class TypeClass, widget string) Policy {
	if p, ok := policyTable[policyKey{class, widget}]; ok {
		return p
	}
	if widget != "" && !knownWidgets[widget] {
		switch class {
		case ClassScalar, ClassVector:
			return PolicySlider
		}
	}
	return PolicyNone
}
