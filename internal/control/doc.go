// Package control implements the attitude and rate control core for a
// multirotor actuated by two independently tiltable thrust modules.
//
// Instead of a fixed mixer matrix, the controller maps attitude and rate
// errors through a coupled LQR gain block into one virtual 3-axis force
// vector per module, then converts each vector geometrically into tilt
// and thrust commands. The control flow per gyro sample:
//
//	gyro sample -> sensor correction -> rate loop (LQR rate columns +
//	cached attitude P-loop output + upstream partial controls) ->
//	negative-thrust redistribution -> tilt/thrust conversion -> publish
//
// The attitude P-loop, manual setpoint generation and mode arbitration
// run at orientation-update rate; the rate loop and actuator publication
// run every gyro sample and never wait on anything else. A single
// goroutine owns all state, entering the kernel only for the bounded
// gyro wait.
package control
