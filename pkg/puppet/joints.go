// Package puppet groups servo channels into limbs and limbs into a puppet.
package puppet

// LimbName identifies a limb of the puppet.
type LimbName string

// JointName identifies a joint within a limb.
type JointName string

// Limb names for the two-armed string puppet.
const (
	LeftArm  LimbName = "left_arm"
	RightArm LimbName = "right_arm"
)

// Joint names of one arm.
const (
	Shoulder JointName = "shoulder"
	Elbow    JointName = "elbow"
	Wrist    JointName = "wrist"
)

// AllJoints returns the joints of an arm from shoulder to wrist.
func AllJoints() []JointName {
	return []JointName{
		Shoulder,
		Elbow,
		Wrist,
	}
}

// AllLimbs returns the limbs of the default puppet in reset order.
func AllLimbs() []LimbName {
	return []LimbName{
		LeftArm,
		RightArm,
	}
}
